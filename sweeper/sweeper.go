// Package sweeper runs the periodic housekeeping jobs: expiring blacklists
// and purging relayed messages past their retention.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"hubnet/metrics"
)

// Infractions revokes expired blacklist entries.
type Infractions interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Messages deletes old originals together with their copies.
type Messages interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Sweeper runs both sweeps. Either collaborator may be nil to skip its sweep.
type Sweeper struct {
	infractions Infractions
	messages    Messages
	retention   time.Duration
	now         func() time.Time
}

func New(infractions Infractions, messages Messages, retention time.Duration) *Sweeper {
	return &Sweeper{
		infractions: infractions,
		messages:    messages,
		retention:   retention,
		now:         time.Now,
	}
}

// Run performs one pass of every sweep. A failing sweep is logged and does
// not stop the others.
func (s *Sweeper) Run(ctx context.Context) {
	if _, err := s.SweepInfractions(ctx); err != nil {
		log.Error().Err(err).Msg("infraction sweep failed")
	}
	if _, err := s.PurgeMessages(ctx); err != nil {
		log.Error().Err(err).Msg("message retention purge failed")
	}
}

// SweepInfractions revokes every expired infraction.
func (s *Sweeper) SweepInfractions(ctx context.Context) (int, error) {
	if s.infractions == nil {
		return 0, nil
	}
	n, err := s.infractions.SweepExpired(ctx)
	metrics.SweptRecords.WithLabelValues("infraction").Add(float64(n))
	if n > 0 {
		log.Info().Int("count", n).Msg("expired infractions revoked")
	}
	return n, err
}

// PurgeMessages deletes messages older than the retention window.
func (s *Sweeper) PurgeMessages(ctx context.Context) (int, error) {
	if s.messages == nil {
		return 0, nil
	}
	cutoff := s.now().Add(-s.retention)
	ids, err := s.messages.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.SweptRecords.WithLabelValues("message").Add(float64(len(ids)))
	if len(ids) > 0 {
		log.Info().
			Int("count", len(ids)).
			Time("cutoff", cutoff).
			Msg("purged messages past retention")
	}
	return len(ids), nil
}
