package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// discordClient talks to one webhook through its own tokenless session so
// its rate-limit buckets are not shared with the gateway session.
type discordClient struct {
	session *discordgo.Session
	id      string
	token   string
}

// NewDiscordClient is the Factory for real Discord webhooks.
func NewDiscordClient(rawURL string) (Client, error) {
	id, token, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	s, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook session: %w", err)
	}
	return &discordClient{session: s, id: id, token: token}, nil
}

// ParseURL extracts the webhook id and token from
// https://discord.com/api/webhooks/{id}/{token}.
func ParseURL(rawURL string) (id, token string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("invalid webhook url: %q", rawURL)
}

func (c *discordClient) Send(ctx context.Context, to Target, p Payload) (string, error) {
	params := &discordgo.WebhookParams{
		Content:         p.Content,
		Username:        p.Username,
		AvatarURL:       p.AvatarURL,
		Embeds:          p.Embeds,
		Components:      p.Components,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}

	var (
		msg *discordgo.Message
		err error
	)
	if to.ThreadID != "" {
		msg, err = c.session.WebhookThreadExecute(c.id, c.token, true, to.ThreadID, params, discordgo.WithContext(ctx))
	} else {
		msg, err = c.session.WebhookExecute(c.id, c.token, true, params, discordgo.WithContext(ctx))
	}
	if err != nil {
		return "", mapError(err)
	}
	return msg.ID, nil
}

func (c *discordClient) Edit(ctx context.Context, to Target, messageID string, p Payload) error {
	// Empty slices clear embeds and rows left over from the previous render.
	if p.Embeds == nil {
		p.Embeds = []*discordgo.MessageEmbed{}
	}
	if p.Components == nil {
		p.Components = []discordgo.MessageComponent{}
	}
	edit := &discordgo.WebhookEdit{
		Content:    &p.Content,
		Embeds:     &p.Embeds,
		Components: &p.Components,
	}
	var err error
	if to.ThreadID != "" {
		_, err = c.session.RequestWithBucketID("PATCH", c.threadMessageURL(messageID, to.ThreadID), edit,
			discordgo.EndpointWebhookToken(c.id, ""), discordgo.WithContext(ctx))
	} else {
		_, err = c.session.WebhookMessageEdit(c.id, c.token, messageID, edit, discordgo.WithContext(ctx))
	}
	return mapError(err)
}

func (c *discordClient) Delete(ctx context.Context, to Target, messageID string) error {
	var err error
	if to.ThreadID != "" {
		_, err = c.session.RequestWithBucketID("DELETE", c.threadMessageURL(messageID, to.ThreadID), nil,
			discordgo.EndpointWebhookToken(c.id, ""), discordgo.WithContext(ctx))
	} else {
		err = c.session.WebhookMessageDelete(c.id, c.token, messageID, discordgo.WithContext(ctx))
	}
	return mapError(err)
}

func (c *discordClient) threadMessageURL(messageID, threadID string) string {
	return discordgo.EndpointWebhookMessage(c.id, c.token, messageID) + "?thread_id=" + url.QueryEscape(threadID)
}

func (c *discordClient) Close() {
	c.session.Client.CloseIdleConnections()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeUnknownWebhook:
			return fmt.Errorf("%w: %v", ErrUnknownWebhook, err)
		case discordgo.ErrCodeUnknownMessage:
			return fmt.Errorf("%w: %v", ErrUnknownMessage, err)
		}
	}
	return err
}
