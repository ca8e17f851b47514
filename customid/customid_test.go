package customid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeParse(t *testing.T) {
	raw := Encode("reaction", "toggle", "123", "👍")
	assert.Equal(t, "reaction:toggle|123|👍", raw)

	id, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "reaction:toggle", id.Route())
	assert.Equal(t, "123", id.Arg(0))
	assert.Equal(t, "👍", id.Arg(1))
	assert.Equal(t, "", id.Arg(2))

	id, err = Parse("reaction:view")
	require.NoError(t, err)
	assert.Empty(t, id.Args)
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{"", "noroute", ":x", "x:", "|a"} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
}
