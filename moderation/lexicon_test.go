package moderation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexicon_CheckNormalises(t *testing.T) {
	l := NewLexicon([]string{"darn", "heck"}, []string{"badword"})

	assert.Equal(t, LexiconResult{HasProfanity: true}, l.Check("well DARN"))
	// Fullwidth letters fold to ASCII under NFKC.
	assert.True(t, l.Check("ｂａｄｗｏｒｄ").HasSlurs)
	assert.Equal(t, LexiconResult{}, l.Check("darning needle"))
}

func TestLexicon_Censor(t *testing.T) {
	l := NewLexicon([]string{"darn"}, []string{"badword"})
	assert.Equal(t, "oh **** it, ******* again", l.Censor("oh Darn it, badword again"))
	assert.Equal(t, "clean", NewLexicon(nil, nil).Censor("clean"))
}

func TestLinks(t *testing.T) {
	assert.True(t, HasInvite("come to https://discord.gg/abc"))
	assert.True(t, HasInvite("discord.com/invite/xyz-1"))
	assert.False(t, HasInvite("https://example.com/discord"))

	assert.Equal(t, "see "+HiddenLink+" and "+HiddenLink, MaskLinks("see https://a.example/x?y=1 and http://b.example"))
	assert.Equal(t, "no links", MaskLinks("no links"))
}

func TestHTTPClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.URL == "https://cdn/bad.png" {
			_ = json.NewEncoder(w).Encode(analyzeResponse{UnsafeScore: 0.97})
			return
		}
		if req.URL == "https://cdn/error.png" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(analyzeResponse{UnsafeScore: 0.01})
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second)
	ctx := context.Background()

	score, err := c.Analyze(ctx, "https://cdn/bad.png")
	require.NoError(t, err)
	assert.InDelta(t, 0.97, score, 1e-9)

	score, err = c.Analyze(ctx, "https://cdn/ok.png")
	require.NoError(t, err)
	assert.Less(t, score, 0.5)

	_, err = c.Analyze(ctx, "https://cdn/error.png")
	assert.Error(t, err)
}
