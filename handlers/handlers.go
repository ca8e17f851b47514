package handlers

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"hubnet/bot"
)

// Register all handlers to the bot. Events carry no deadline; each remote
// call is bounded by the session's HTTP client timeout.
func Register(b *bot.Bot) {
	relay := NewRelay(b.Registry, b.Gate, b.Broadcast, b.Identity, b.Cluster)
	interactions := NewInteractions(b.Identity, b.Registry, b.Auth)

	b.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		ctx := context.Background()
		if err := relay.OnMessage(ctx, m.Message); err != nil {
			log.Error().Err(err).Str("message_id", m.ID).Str("channel_id", m.ChannelID).Msg("failed to relay message")
		}
	})

	b.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageUpdate) {
		ctx := context.Background()
		if err := relay.OnEdit(ctx, m.Message); err != nil {
			log.Error().Err(err).Str("message_id", m.ID).Msg("failed to relay edit")
		}
	})

	b.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageDelete) {
		ctx := context.Background()
		if err := relay.OnDelete(ctx, m.ID); err != nil {
			log.Error().Err(err).Str("message_id", m.ID).Msg("failed to relay delete")
		}
	})

	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
		if s.State.User != nil && r.UserID == s.State.User.ID {
			return
		}
		if r.Member != nil && r.Member.User != nil && r.Member.User.Bot {
			return
		}
		ctx := context.Background()
		taken, err := relay.OnReaction(ctx, r.MessageReaction)
		if err != nil {
			log.Error().Err(err).Str("message_id", r.MessageID).Msg("failed to mirror reaction")
			return
		}
		if !taken {
			return
		}
		if err := s.MessageReactionRemove(r.ChannelID, r.MessageID, r.Emoji.APIName(), r.UserID); err != nil {
			log.Debug().Err(err).Str("message_id", r.MessageID).Msg("could not remove native reaction")
		}
	})

	b.Session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		ctx := context.Background()
		if err := interactions.Handle(ctx, s, i.Interaction); err != nil {
			log.Error().Err(err).Str("interaction_id", i.ID).Msg("failed to handle interaction")
		}
	})

	// Add a ready handler to log when the bot is connected.
	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Info().
			Str("user", r.User.Username).
			Int("guilds", len(r.Guilds)).
			Msg("logged in")
	})
}
