package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"hubnet/infraction"
	"hubnet/models"
	"hubnet/moderation"
)

// MessageReplier posts replies and DMs. *discordgo.Session implements it.
type MessageReplier interface {
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ReplyNotifier tells authors why their message was dropped by replying to
// it in the source channel.
type ReplyNotifier struct {
	session MessageReplier
}

func NewReplyNotifier(s MessageReplier) *ReplyNotifier {
	return &ReplyNotifier{session: s}
}

func (n *ReplyNotifier) Notify(_ context.Context, c *moderation.Candidate, r *moderation.Rejection) {
	ref := &discordgo.MessageReference{
		MessageID: c.MessageID,
		ChannelID: c.Source.ChannelID,
		GuildID:   c.Source.ServerID,
	}
	if _, err := n.session.ChannelMessageSendReply(c.Source.ChannelID, r.Notice, ref); err != nil {
		log.Warn().
			Err(err).
			Str("channel_id", c.Source.ChannelID).
			Str("reason", string(r.Reason)).
			Msg("failed to notify author of rejection")
	}
}

// scheduledExpiry lifts automatic blacklists at their expiry instead of
// waiting for the next periodic sweep.
type scheduledExpiry struct {
	*infraction.Store
	scheduler *Scheduler
}

func (s *scheduledExpiry) Add(ctx context.Context, in infraction.Input) (*models.Infraction, error) {
	inf, err := s.Store.Add(ctx, in)
	if err != nil || inf.ExpiresAt == nil {
		return inf, err
	}
	s.scheduler.AddOneShotTask("infraction-expiry:"+inf.ID, *inf.ExpiresAt, func(ctx context.Context) {
		if _, err := s.Store.SweepExpired(ctx); err != nil {
			log.Error().Err(err).Str("infraction_id", inf.ID).Msg("expiry sweep failed")
		}
	})
	return inf, nil
}

// notifyExpired tells a user their blacklist has been lifted. Server-wide
// entries are only logged, with the server name resolved across shards.
func (b *Bot) notifyExpired(ctx context.Context, inf *models.Infraction) {
	event := log.Info().
		Str("infraction_id", inf.ID).
		Str("hub_id", inf.HubID).
		Str("target_id", inf.TargetID).
		Str("target_type", string(inf.TargetType))

	if inf.TargetType == models.TargetServer {
		if g, err := b.Cluster.FetchGuild(ctx, inf.TargetID); err == nil {
			event = event.Str("server_name", g.Name)
		}
		event.Msg("server blacklist expired")
		return
	}
	event.Msg("user blacklist expired")

	hubName := inf.HubID
	if hub, err := b.Registry.GetHub(ctx, inf.HubID); err == nil {
		hubName = hub.Name
	}
	if err := sendDM(b.Session, inf.TargetID, fmt.Sprintf("Your blacklist in hub **%s** has expired. You can chat again.", hubName)); err != nil {
		log.Debug().Err(err).Str("user_id", inf.TargetID).Msg("could not DM user about expired blacklist")
	}
}

func sendDM(s MessageReplier, userID, content string) error {
	ch, err := s.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = s.ChannelMessageSend(ch.ID, content)
	return err
}
