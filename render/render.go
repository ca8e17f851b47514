// Package render turns a stored message into the webhook payload for one
// target channel.
package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"hubnet/customid"
	"hubnet/models"
	"hubnet/moderation"
	"hubnet/webhook"
)

const (
	// MaxUsernameLength bounds the display name shown on relayed copies.
	MaxUsernameLength = 35
	DefaultEmbedColor = 0x5865F2

	replySnippetLength = 80
)

// Component routes owned by the reaction controls.
const (
	ReactionPrefix  = "reaction"
	ReactionToggle  = "toggle"
	ReactionViewAll = "view"
)

// Censorer masks banned words.
type Censorer interface {
	Censor(text string) string
}

// ReplyRef points a copy at the message it replies to.
type ReplyRef struct {
	AuthorName string
	Content    string
	// JumpURLs maps a target channel id to the link of the replied-to
	// message in that channel.
	JumpURLs map[string]string
}

// Input is everything needed to render one copy.
type Input struct {
	Hub     *models.Hub
	Message *models.OriginalMessage
	Target  *models.Connection
	Reply   *ReplyRef
}

// Renderer builds payloads.
type Renderer struct {
	censor Censorer
}

func New(censor Censorer) *Renderer {
	return &Renderer{censor: censor}
}

// DisplayName picks the nickname when the hub prefers nicknames, falling
// back to the username.
func DisplayName(hub *models.Hub, username, nickname string) string {
	if hub.Settings.Has(models.SettingUseNicknames) && strings.TrimSpace(nickname) != "" {
		return nickname
	}
	return username
}

// Username trims and censors a display name.
func (r *Renderer) Username(name string) string {
	name = strings.TrimSpace(r.censor.Censor(name))
	if utf8.RuneCountInString(name) > MaxUsernameLength {
		name = string([]rune(name)[:MaxUsernameLength])
	}
	if name == "" {
		name = "Unknown"
	}
	return name
}

// Content applies the hub and target display rules to text.
func (r *Renderer) Content(hub *models.Hub, target *models.Connection, text string) string {
	if hub.Settings.Has(models.SettingHideLinks) {
		text = moderation.MaskLinks(text)
	}
	if target.ProfanityFilter {
		text = r.censor.Censor(text)
	}
	return text
}

// Message renders the copy of in.Message for in.Target.
func (r *Renderer) Message(in Input) webhook.Payload {
	msg := in.Message
	text := r.Content(in.Hub, in.Target, msg.Content)
	name := r.Username(msg.AuthorName)

	var p webhook.Payload
	if in.Target.Compact {
		p = r.compact(in, name, text)
	} else {
		p = r.embed(in, name, text)
	}

	var rows []discordgo.MessageComponent
	if row := r.replyRow(in); row != nil {
		rows = append(rows, row)
	}
	if row := ReactionRow(in.Hub, msg.ID, msg.Reactions); row != nil {
		rows = append(rows, row)
	}
	p.Components = rows
	return p
}

func (r *Renderer) compact(in Input, name, text string) webhook.Payload {
	var b strings.Builder
	if in.Reply != nil && in.Reply.Content != "" {
		fmt.Fprintf(&b, "> **%s**: %s\n", r.Username(in.Reply.AuthorName), snippet(r.Content(in.Hub, in.Target, in.Reply.Content)))
	}
	b.WriteString(text)
	for _, a := range in.Message.Attachments {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(a.URL)
	}
	return webhook.Payload{
		Content:   b.String(),
		Username:  name,
		AvatarURL: in.Message.AvatarURL,
	}
}

func (r *Renderer) embed(in Input, name, text string) webhook.Payload {
	color := in.Target.EmbedColor
	if color == 0 {
		color = DefaultEmbedColor
	}
	e := &discordgo.MessageEmbed{
		Description: text,
		Color:       color,
		Author: &discordgo.MessageEmbedAuthor{
			Name:    name,
			IconURL: in.Message.AvatarURL,
		},
	}
	if in.Message.GuildName != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: "From: " + in.Message.GuildName}
	}
	if in.Reply != nil && in.Reply.Content != "" {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:  "Reply to " + r.Username(in.Reply.AuthorName),
			Value: snippet(r.Content(in.Hub, in.Target, in.Reply.Content)),
		})
	}
	for _, a := range in.Message.Attachments {
		if strings.HasPrefix(a.ContentType, "image/") {
			e.Image = &discordgo.MessageEmbedImage{URL: a.URL}
			break
		}
	}
	if !in.Message.CreatedAt.IsZero() {
		e.Timestamp = in.Message.CreatedAt.UTC().Format(time.RFC3339)
	}
	return webhook.Payload{
		Embeds:    []*discordgo.MessageEmbed{e},
		Username:  in.Hub.Name,
		AvatarURL: in.Hub.IconURL,
	}
}

func (r *Renderer) replyRow(in Input) discordgo.MessageComponent {
	if in.Reply == nil {
		return nil
	}
	url := in.Reply.JumpURLs[in.Target.ChannelID]
	if url == "" {
		return nil
	}
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{Label: "Reply to " + r.Username(in.Reply.AuthorName), Style: discordgo.LinkButton, URL: url},
	}}
}

// ReactionRow renders the "top reaction + view all" controls, or nil when
// reactions are off or empty.
func ReactionRow(hub *models.Hub, originID string, reactions models.Reactions) discordgo.MessageComponent {
	if !hub.Settings.Has(models.SettingReactions) || len(reactions) == 0 {
		return nil
	}
	emoji, count := TopReaction(reactions)
	buttons := []discordgo.MessageComponent{
		discordgo.Button{
			Label:    emoji + " " + strconv.Itoa(count),
			Style:    discordgo.SecondaryButton,
			CustomID: customid.Encode(ReactionPrefix, ReactionToggle, originID, emoji),
		},
	}
	if len(reactions) > 1 {
		buttons = append(buttons, discordgo.Button{
			Label:    fmt.Sprintf("+%d more", len(reactions)-1),
			Style:    discordgo.SecondaryButton,
			CustomID: customid.Encode(ReactionPrefix, ReactionViewAll, originID),
		})
	}
	return discordgo.ActionsRow{Components: buttons}
}

// TopReaction returns the emoji with the most users, ties broken by emoji
// order so every copy shows the same button.
func TopReaction(reactions models.Reactions) (string, int) {
	keys := make([]string, 0, len(reactions))
	for k := range reactions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	top, count := "", -1
	for _, k := range keys {
		if n := len(reactions[k]); n > count {
			top, count = k, n
		}
	}
	return top, count
}

// JumpURL links to a message in a channel.
func JumpURL(guildID, channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}

func snippet(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) > replySnippetLength {
		return string([]rune(s)[:replySnippetLength-1]) + "…"
	}
	return s
}
