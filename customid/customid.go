// Package customid encodes the custom ids attached to message components.
// The format is "prefix:suffix|arg|arg"; (prefix, suffix) selects a handler
// and the args carry its parameters.
package customid

import (
	"errors"
	"strings"
)

const (
	routeSep = ":"
	argSep   = "|"
)

// ErrMalformed is returned for ids that do not carry a prefix and suffix.
var ErrMalformed = errors.New("customid: malformed id")

// ID is a decoded custom id.
type ID struct {
	Prefix string
	Suffix string
	Args   []string
}

// Route returns the "prefix:suffix" key used by handler tables.
func (id ID) Route() string {
	return id.Prefix + routeSep + id.Suffix
}

// Arg returns the i-th argument or "" if absent.
func (id ID) Arg(i int) string {
	if i < 0 || i >= len(id.Args) {
		return ""
	}
	return id.Args[i]
}

// Encode builds a custom id.
func Encode(prefix, suffix string, args ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(routeSep)
	b.WriteString(suffix)
	for _, a := range args {
		b.WriteString(argSep)
		b.WriteString(a)
	}
	return b.String()
}

// Parse decodes a custom id.
func Parse(raw string) (ID, error) {
	parts := strings.Split(raw, argSep)
	prefix, suffix, ok := strings.Cut(parts[0], routeSep)
	if !ok || prefix == "" || suffix == "" {
		return ID{}, ErrMalformed
	}
	return ID{Prefix: prefix, Suffix: suffix, Args: parts[1:]}, nil
}
