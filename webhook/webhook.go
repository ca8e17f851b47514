// Package webhook delivers relayed messages through channel webhooks.
package webhook

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"

	"hubnet/models"
)

// ErrUnknownWebhook is returned when the webhook no longer exists. The
// connection using it cannot receive messages until it is reconfigured.
var ErrUnknownWebhook = errors.New("webhook: unknown webhook")

// ErrUnknownMessage is returned when editing or deleting a message that is
// already gone.
var ErrUnknownMessage = errors.New("webhook: unknown message")

// Payload is what a relayed copy looks like in one target channel.
type Payload struct {
	Content    string
	Username   string
	AvatarURL  string
	Embeds     []*discordgo.MessageEmbed
	Components []discordgo.MessageComponent
}

// Target addresses a webhook message. ThreadID is set when the connected
// channel is a thread under the webhook's channel.
type Target struct {
	ThreadID string
}

// Postable can create messages.
type Postable interface {
	Send(ctx context.Context, to Target, p Payload) (messageID string, err error)
}

// Editable can change or remove messages it created.
type Editable interface {
	Edit(ctx context.Context, to Target, messageID string, p Payload) error
	Delete(ctx context.Context, to Target, messageID string) error
}

// Client is a webhook bound to one URL.
type Client interface {
	Postable
	Editable
	Close()
}

// Factory builds a client for a webhook URL.
type Factory func(url string) (Client, error)

// TargetOf addresses messages for a connection. Threads are reached through
// their parent channel's webhook.
func TargetOf(conn *models.Connection) Target {
	if conn.ParentID != "" {
		return Target{ThreadID: conn.ChannelID}
	}
	return Target{}
}
