package models

import "time"

// Connection is a channel's membership record in a hub. A channel belongs to
// at most one hub at a time.
type Connection struct {
	ID              string    `json:"id"`
	HubID           string    `json:"hub_id"`
	ServerID        string    `json:"server_id"`
	ChannelID       string    `json:"channel_id"`
	ParentID        string    `json:"parent_id,omitempty"` // set when ChannelID is a thread
	WebhookURL      string    `json:"webhook_url"`
	Connected       bool      `json:"connected"`
	Compact         bool      `json:"compact"`
	ProfanityFilter bool      `json:"profanity_filter"`
	EmbedColor      int       `json:"embed_color"`
	LastActiveAt    time.Time `json:"last_active_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// Mode reports how copies delivered to this connection are rendered.
func (c *Connection) Mode() RenderMode {
	if c.Compact {
		return ModeCompact
	}
	return ModeEmbed
}
