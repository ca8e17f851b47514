// Package broadcast relays one accepted message to every other channel of
// its hub.
package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"hubnet/fanout"
	"hubnet/models"
	"hubnet/render"
	"hubnet/webhook"
)

// Identity persists deliveries and resolves reply context.
type Identity interface {
	Record(ctx context.Context, orig *models.OriginalMessage, copies []models.BroadcastMessage) error
	ReplyContext(ctx context.Context, replyToID string) (*render.ReplyRef, error)
	DeliveryFailed(ctx context.Context, conn *models.Connection, err error)
}

// Webhooks hands out pooled webhook clients.
type Webhooks interface {
	Get(url string) (webhook.Client, error)
}

// Activity records that a channel just sent something.
type Activity interface {
	Touch(ctx context.Context, channelID string, at time.Time) error
}

// Failure is one target that did not receive the message.
type Failure struct {
	Target *models.Connection
	Err    error
}

// DeliveryReport summarises one broadcast. Succeeded+Failed == Attempted.
type DeliveryReport struct {
	Attempted int
	Succeeded int
	Failed    int
	Failures  []Failure
	Copies    []models.BroadcastMessage
}

type Service struct {
	identity Identity
	webhooks Webhooks
	activity Activity
	fan      *fanout.Dispatcher
	render   *render.Renderer
	now      func() time.Time
}

func NewService(identity Identity, webhooks Webhooks, activity Activity, fan *fanout.Dispatcher, r *render.Renderer) *Service {
	return &Service{
		identity: identity,
		webhooks: webhooks,
		activity: activity,
		fan:      fan,
		render:   r,
		now:      time.Now,
	}
}

// Broadcast sends msg to every target and stores the original together with
// exactly the copies that were delivered. Delivery failures are reported,
// never returned as an error; the error is reserved for persistence.
func (s *Service) Broadcast(ctx context.Context, msg *models.OriginalMessage, hub *models.Hub, targets []*models.Connection) (*DeliveryReport, error) {
	reply, err := s.identity.ReplyContext(ctx, msg.ReplyToID)
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.ID).Msg("reply context unavailable")
	}

	delivered := make([]*models.BroadcastMessage, len(targets))
	errs := s.fan.Run(ctx, "broadcast", len(targets), func(ctx context.Context, i int) error {
		target := targets[i]
		client, err := s.webhooks.Get(target.WebhookURL)
		if err != nil {
			return fmt.Errorf("webhook client: %w", err)
		}
		payload := s.render.Message(render.Input{Hub: hub, Message: msg, Target: target, Reply: reply})
		id, err := client.Send(ctx, webhook.TargetOf(target), payload)
		if err != nil {
			s.identity.DeliveryFailed(ctx, target, err)
			return err
		}
		delivered[i] = &models.BroadcastMessage{
			ID:         id,
			OriginalID: msg.ID,
			ChannelID:  target.ChannelID,
			GuildID:    target.ServerID,
			Mode:       target.Mode(),
			CreatedAt:  s.now(),
		}
		return nil
	})

	report := &DeliveryReport{Attempted: len(targets)}
	for i, err := range errs {
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, Failure{Target: targets[i], Err: err})
			log.Warn().
				Err(err).
				Str("hub_id", hub.ID).
				Str("channel_id", targets[i].ChannelID).
				Str("message_id", msg.ID).
				Msg("broadcast delivery failed")
			continue
		}
		report.Succeeded++
		report.Copies = append(report.Copies, *delivered[i])
	}

	// Delivered copies must be recorded even when the caller gave up waiting.
	persist := context.WithoutCancel(ctx)
	if err := s.identity.Record(persist, msg, report.Copies); err != nil {
		return report, fmt.Errorf("failed to record broadcast %s: %w", msg.ID, err)
	}
	if err := s.activity.Touch(persist, msg.ChannelID, s.now()); err != nil {
		log.Warn().Err(err).Str("channel_id", msg.ChannelID).Msg("failed to update channel activity")
	}

	log.Debug().
		Str("hub_id", hub.ID).
		Str("message_id", msg.ID).
		Int("attempted", report.Attempted).
		Int("succeeded", report.Succeeded).
		Msg("broadcast complete")
	return report, nil
}
