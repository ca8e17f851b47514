package handlers

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"hubnet/broadcast"
	"hubnet/cluster"
	"hubnet/identity"
	"hubnet/models"
	"hubnet/moderation"
	"hubnet/registry"
	"hubnet/render"
)

// Connections resolves channels and hubs.
type Connections interface {
	Get(ctx context.Context, channelID string) (*models.Connection, error)
	Targets(ctx context.Context, hubID, excludeChannelID string) ([]*models.Connection, error)
	Update(ctx context.Context, conn *models.Connection) error
	GetHub(ctx context.Context, id string) (*models.Hub, error)
}

// Gate is the moderation chain.
type Gate interface {
	Check(ctx context.Context, c *moderation.Candidate) (*moderation.Verdict, error)
	Lexicon() *moderation.Lexicon
}

// Broadcaster relays accepted messages.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg *models.OriginalMessage, hub *models.Hub, targets []*models.Connection) (*broadcast.DeliveryReport, error)
}

// Messages is the message identity index.
type Messages interface {
	FindOrigin(ctx context.Context, anyID string) (*models.OriginalMessage, error)
	EditOrigin(ctx context.Context, anyID, content string) (identity.Result, error)
	DeleteOrigin(ctx context.Context, anyID string) (identity.Result, error)
	ToggleReaction(ctx context.Context, anyID, emoji, userID string) (identity.ReactionResult, error)
	Reactions(ctx context.Context, anyID string) (models.Reactions, error)
}

// Directory resolves guilds and channels on whichever shard holds them.
type Directory interface {
	FetchGuild(ctx context.Context, guildID string) (*cluster.GuildInfo, error)
	FetchChannel(ctx context.Context, channelID string) (*cluster.ChannelInfo, error)
}

// Relay turns gateway message events into hub operations.
type Relay struct {
	conns       Connections
	gate        Gate
	broadcaster Broadcaster
	messages    Messages
	directory   Directory
}

func NewRelay(conns Connections, gate Gate, broadcaster Broadcaster, messages Messages, directory Directory) *Relay {
	return &Relay{
		conns:       conns,
		gate:        gate,
		broadcaster: broadcaster,
		messages:    messages,
		directory:   directory,
	}
}

// relayable reports whether m was written by a person in a guild channel.
func relayable(m *discordgo.Message) bool {
	if m.Author == nil || m.Author.Bot || m.WebhookID != "" || m.GuildID == "" {
		return false
	}
	return m.Type == discordgo.MessageTypeDefault || m.Type == discordgo.MessageTypeReply
}

// source returns the connected hub channel m was posted in, or nil.
func (r *Relay) source(ctx context.Context, channelID string) (*models.Connection, *models.Hub, error) {
	conn, err := r.conns.Get(ctx, channelID)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if !conn.Connected || !r.checkChannel(ctx, conn) {
		return nil, nil, nil
	}
	hub, err := r.conns.GetHub(ctx, conn.HubID)
	if err != nil {
		return nil, nil, err
	}
	return conn, hub, nil
}

// checkChannel resolves the kind of a connected channel. Channels the relay
// cannot post into are skipped. A thread whose connection lacks its parent
// gets it recorded so copies are addressed to the thread. Lookup failures
// leave the connection as it is.
func (r *Relay) checkChannel(ctx context.Context, conn *models.Connection) bool {
	info, err := r.directory.FetchChannel(ctx, conn.ChannelID)
	if err != nil {
		log.Debug().Err(err).Str("channel_id", conn.ChannelID).Msg("channel details unavailable")
		return true
	}
	switch models.ParseChannelKind(info.Kind) {
	case models.ChannelUnsupported:
		log.Debug().Str("channel_id", conn.ChannelID).Str("kind", info.Kind).Msg("ignoring unsupported channel")
		return false
	case models.ChannelThread:
		if conn.ParentID == "" && info.ParentID != "" {
			updated := *conn
			updated.ParentID = info.ParentID
			if err := r.conns.Update(ctx, &updated); err != nil {
				log.Warn().Err(err).Str("channel_id", conn.ChannelID).Msg("failed to record thread parent")
			}
		}
	}
	return true
}

// OnMessage moderates a new message and relays it to the rest of its hub.
func (r *Relay) OnMessage(ctx context.Context, m *discordgo.Message) error {
	if !relayable(m) {
		return nil
	}
	conn, hub, err := r.source(ctx, m.ChannelID)
	if err != nil || conn == nil {
		return err
	}

	attachments := attachmentsOf(m)
	verdict, err := r.gate.Check(ctx, &moderation.Candidate{
		Hub:         hub,
		Source:      conn,
		MessageID:   m.ID,
		AuthorID:    m.Author.ID,
		Content:     m.Content,
		Attachments: attachments,
		Stickers:    len(m.StickerItems),
		At:          m.Timestamp,
	})
	var rej *moderation.Rejection
	if errors.As(err, &rej) {
		return nil
	}
	if err != nil {
		return err
	}

	msg := &models.OriginalMessage{
		ID:          m.ID,
		HubID:       hub.ID,
		AuthorID:    m.Author.ID,
		AuthorName:  authorName(hub, m),
		AvatarURL:   m.Author.AvatarURL(""),
		GuildID:     m.GuildID,
		GuildName:   r.guildName(ctx, m.GuildID),
		ChannelID:   m.ChannelID,
		Content:     m.Content,
		Attachments: attachments,
		ReplyToID:   replyTo(m),
		Reactions:   models.Reactions{},
		CreatedAt:   m.Timestamp,
	}
	if verdict.Profane {
		log.Info().
			Str("hub_id", hub.ID).
			Str("author_id", msg.AuthorID).
			Str("message_id", msg.ID).
			Str("content", msg.Content).
			Msg("relaying message with profanity")
	}

	targets, err := r.conns.Targets(ctx, hub.ID, m.ChannelID)
	if err != nil {
		return err
	}
	_, err = r.broadcaster.Broadcast(ctx, msg, hub, targets)
	return err
}

// OnEdit propagates an author's edit to every copy.
func (r *Relay) OnEdit(ctx context.Context, m *discordgo.Message) error {
	if !relayable(m) {
		return nil
	}
	orig, err := r.messages.FindOrigin(ctx, m.ID)
	if errors.Is(err, identity.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if orig.ID != m.ID || orig.AuthorID != m.Author.ID || orig.Content == m.Content {
		return nil
	}

	hub, err := r.conns.GetHub(ctx, orig.HubID)
	if err != nil {
		return err
	}
	if r.gate.Lexicon().Check(m.Content).HasSlurs {
		log.Info().Str("message_id", m.ID).Msg("edit not relayed: slur")
		return nil
	}
	if hub.Settings.Has(models.SettingBlockInvites) && moderation.HasInvite(m.Content) {
		log.Info().Str("message_id", m.ID).Msg("edit not relayed: invite link")
		return nil
	}

	res, err := r.messages.EditOrigin(ctx, m.ID, m.Content)
	if err != nil {
		return err
	}
	log.Debug().
		Str("message_id", m.ID).
		Int("succeeded", res.Succeeded).
		Int("total", res.Total).
		Msg("edit relayed")
	return nil
}

// OnDelete removes every copy when the original is deleted. Copies deleted
// by a receiving server's moderators only disappear from that channel.
func (r *Relay) OnDelete(ctx context.Context, messageID string) error {
	orig, err := r.messages.FindOrigin(ctx, messageID)
	if errors.Is(err, identity.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if orig.ID != messageID {
		return nil
	}

	_, err = r.messages.DeleteOrigin(ctx, messageID)
	if errors.Is(err, identity.ErrDeleteInProgress) || errors.Is(err, identity.ErrNotFound) {
		return nil
	}
	return err
}

// OnReaction mirrors a native reaction on any tracked message into the hub
// reaction row. It reports whether the reaction was taken over, in which case
// the native one should be removed.
func (r *Relay) OnReaction(ctx context.Context, reaction *discordgo.MessageReaction) (bool, error) {
	_, err := r.messages.ToggleReaction(ctx, reaction.MessageID, reaction.Emoji.MessageFormat(), reaction.UserID)
	switch {
	case err == nil, errors.Is(err, identity.ErrUnknownReaction):
		return true, nil
	case errors.Is(err, identity.ErrNotFound), errors.Is(err, identity.ErrReactionsDisabled):
		return false, nil
	default:
		return false, err
	}
}

func (r *Relay) guildName(ctx context.Context, guildID string) string {
	g, err := r.directory.FetchGuild(ctx, guildID)
	if err != nil {
		log.Debug().Err(err).Str("guild_id", guildID).Msg("guild name unavailable")
		return ""
	}
	return g.Name
}

func authorName(hub *models.Hub, m *discordgo.Message) string {
	username := m.Author.GlobalName
	if username == "" {
		username = m.Author.Username
	}
	var nick string
	if m.Member != nil {
		nick = m.Member.Nick
	}
	return render.DisplayName(hub, username, nick)
}

func replyTo(m *discordgo.Message) string {
	if m.Type != discordgo.MessageTypeReply || m.MessageReference == nil {
		return ""
	}
	return m.MessageReference.MessageID
}

func attachmentsOf(m *discordgo.Message) []models.Attachment {
	if len(m.Attachments) == 0 {
		return nil
	}
	out := make([]models.Attachment, len(m.Attachments))
	for i, a := range m.Attachments {
		out[i] = models.Attachment{
			URL:         a.URL,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
		}
	}
	return out
}
