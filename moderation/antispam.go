package moderation

import (
	"context"
	"time"

	"hubnet/cache"
	"hubnet/models"
)

// SpamResult is the outcome of recording one message.
type SpamResult struct {
	// Flagged is set when the author exceeded the window threshold.
	Flagged bool
	// Strikes counts flagged messages inside the strike window.
	Strikes int64
}

// AntiSpam keeps a sliding-window message counter per author.
type AntiSpam struct {
	store cache.Store
	cfg   models.SpamSettings
}

func NewAntiSpam(store cache.Store, cfg models.SpamSettings) *AntiSpam {
	return &AntiSpam{store: store, cfg: cfg}
}

func windowKey(authorID string) string { return "spam:window:" + authorID }
func strikeKey(authorID string) string { return "spam:strikes:" + authorID }

// Hit records a message by authorID at t.
func (a *AntiSpam) Hit(ctx context.Context, authorID string, t time.Time) (SpamResult, error) {
	n, err := a.store.WindowHit(ctx, windowKey(authorID), t, a.cfg.Window)
	if err != nil {
		return SpamResult{}, err
	}
	if n <= int64(a.cfg.Threshold) {
		return SpamResult{}, nil
	}
	strikes, err := a.store.Incr(ctx, strikeKey(authorID), a.cfg.StrikeWindow)
	if err != nil {
		return SpamResult{Flagged: true}, err
	}
	return SpamResult{Flagged: true, Strikes: strikes}, nil
}

// Reset clears an author's strikes.
func (a *AntiSpam) Reset(ctx context.Context, authorID string) error {
	return a.store.Del(ctx, strikeKey(authorID))
}
