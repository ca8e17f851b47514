package moderation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// LexiconResult reports which word lists a text matched.
type LexiconResult struct {
	HasProfanity bool
	HasSlurs     bool
}

// Lexicon matches text against the profanity and slur word lists. Matching
// runs on NFKC-normalised, case-folded text so that fullwidth and styled
// letters do not slip past.
type Lexicon struct {
	profanity *regexp.Regexp
	slurs     *regexp.Regexp
	censor    *regexp.Regexp
}

// NewLexicon compiles the word lists. Empty lists never match.
func NewLexicon(profanity, slurs []string) *Lexicon {
	return &Lexicon{
		profanity: compileWords(profanity, normalize),
		slurs:     compileWords(slurs, normalize),
		censor:    compileWords(append(append([]string{}, profanity...), slurs...), func(s string) string { return s }),
	}
}

func normalize(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

func compileWords(words []string, prep func(string) string) *regexp.Regexp {
	alts := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.TrimSpace(prep(w))
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		alts = append(alts, regexp.QuoteMeta(w))
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
}

// Check reports whether text contains profanity or slurs.
func (l *Lexicon) Check(text string) LexiconResult {
	n := normalize(text)
	return LexiconResult{
		HasProfanity: l.profanity != nil && l.profanity.MatchString(n),
		HasSlurs:     l.slurs != nil && l.slurs.MatchString(n),
	}
}

// Censor replaces every listed word in text with asterisks of the same length.
func (l *Lexicon) Censor(text string) string {
	if l.censor == nil {
		return text
	}
	return l.censor.ReplaceAllStringFunc(text, func(m string) string {
		return strings.Repeat("*", utf8.RuneCountInString(m))
	})
}
