package models

import "time"

// MaxReactionKeys caps the distinct emoji tracked per message. Existing keys
// stay toggleable once the cap is reached; new ones are refused.
const MaxReactionKeys = 10

// RenderMode is how a copy was rendered in its target channel.
type RenderMode string

const (
	ModeCompact RenderMode = "compact"
	ModeEmbed   RenderMode = "embed"
)

// Reactions maps an emoji to the users that reacted with it. The persisted
// form is {emoji: [userId, ...]}.
type Reactions map[string][]string

// Attachment is the subset of a platform attachment the relay needs.
type Attachment struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// OriginalMessage is the canonical record of an accepted user message.
type OriginalMessage struct {
	ID          string       `json:"id"`
	HubID       string       `json:"hub_id"`
	AuthorID    string       `json:"author_id"`
	AuthorName  string       `json:"author_name"`
	AvatarURL   string       `json:"avatar_url"`
	GuildID     string       `json:"guild_id"`
	GuildName   string       `json:"guild_name"`
	ChannelID   string       `json:"channel_id"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	ReplyToID   string       `json:"reply_to_id,omitempty"`
	Reactions   Reactions    `json:"reactions"`
	CreatedAt   time.Time    `json:"created_at"`
}

// BroadcastMessage is one delivered copy of an original message.
type BroadcastMessage struct {
	ID         string     `json:"id"` // remote message id in the target channel
	OriginalID string     `json:"original_id"`
	ChannelID  string     `json:"channel_id"`
	GuildID    string     `json:"guild_id"`
	Mode       RenderMode `json:"mode"`
	CreatedAt  time.Time  `json:"created_at"`
}
