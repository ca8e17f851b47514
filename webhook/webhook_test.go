package webhook

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopClient struct {
	closed *atomic.Int32
}

func (nopClient) Send(context.Context, Target, Payload) (string, error) { return "1", nil }
func (nopClient) Edit(context.Context, Target, string, Payload) error { return nil }
func (nopClient) Delete(context.Context, Target, string) error { return nil }
func (c nopClient) Close() { c.closed.Add(1) }

func TestPool_ReusesAndSweepsIdle(t *testing.T) {
	var created, closed atomic.Int32
	p := NewPool(func(string) (Client, error) {
		created.Add(1)
		return nopClient{closed: &closed}, nil
	}, time.Hour)

	a1, err := p.Get("https://x/webhooks/1/a")
	require.NoError(t, err)
	a2, err := p.Get("https://x/webhooks/1/a")
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	_, err = p.Get("https://x/webhooks/2/b")
	require.NoError(t, err)
	assert.Equal(t, int32(2), created.Load())

	// Both were used since creation, so the first sweep only resets them.
	assert.Zero(t, p.Sweep())
	_, err = p.Get("https://x/webhooks/1/a")
	require.NoError(t, err)

	assert.Equal(t, 1, p.Sweep())
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, int32(1), closed.Load())

	p.Stop()
	assert.Zero(t, p.Len())
	assert.Equal(t, int32(2), closed.Load())
}

func TestPool_FactoryError(t *testing.T) {
	boom := errors.New("bad url")
	p := NewPool(func(string) (Client, error) { return nil, boom }, time.Hour)
	_, err := p.Get("nope")
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, p.Len())
}

func TestPool_StartStop(t *testing.T) {
	var closed atomic.Int32
	p := NewPool(func(string) (Client, error) { return nopClient{closed: &closed}, nil }, 10*time.Millisecond)
	p.Start()
	p.Start()

	_, err := p.Get("u")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return p.Len() == 0 }, time.Second, 5*time.Millisecond)

	p.Stop()
	p.Stop()
}

func TestParseURL(t *testing.T) {
	id, token, err := ParseURL("https://discord.com/api/webhooks/123/abc-DEF")
	require.NoError(t, err)
	assert.Equal(t, "123", id)
	assert.Equal(t, "abc-DEF", token)

	id, _, err = ParseURL("https://canary.discord.com/api/v10/webhooks/9/t")
	require.NoError(t, err)
	assert.Equal(t, "9", id)

	_, _, err = ParseURL("https://discord.com/api/channels/1")
	assert.Error(t, err)
}

func TestMapError(t *testing.T) {
	unknown := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownWebhook, Message: "Unknown Webhook"},
	}
	assert.ErrorIs(t, mapError(unknown), ErrUnknownWebhook)

	gone := &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage}}
	assert.ErrorIs(t, mapError(gone), ErrUnknownMessage)

	other := errors.New("timeout")
	assert.Equal(t, other, mapError(other))
	assert.NoError(t, mapError(nil))
}
