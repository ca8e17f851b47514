package identity

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"hubnet/database"
	"hubnet/models"
	"hubnet/webhook"
)

func deleteLockKey(originID string) string {
	return "delete_lock:" + originID
}

// EditOrigin replaces the content of a message and re-renders every copy.
// Failed copies are counted, not retried.
func (ix *Index) EditOrigin(ctx context.Context, anyID, content string) (Result, error) {
	orig, err := ix.FindOrigin(ctx, anyID)
	if err != nil {
		return Result{}, err
	}
	if err := ix.repo.UpdateContent(ctx, orig.ID, content); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return Result{}, ErrNotFound
		}
		return Result{}, err
	}
	orig.Content = content

	copies, err := ix.repo.Copies(ctx, orig.ID)
	if err != nil {
		return Result{}, err
	}
	return ix.rerender(ctx, "edit", orig, copies)
}

// DeleteOrigin removes every copy of a message and then the message itself.
// Only one delete per message runs at a time; a concurrent call gets
// ErrDeleteInProgress.
func (ix *Index) DeleteOrigin(ctx context.Context, anyID string) (Result, error) {
	orig, err := ix.FindOrigin(ctx, anyID)
	if err != nil {
		return Result{}, err
	}

	key := deleteLockKey(orig.ID)
	acquired, err := ix.store.SetNX(ctx, key, []byte("1"), ix.lockTTL)
	if err != nil {
		return Result{}, err
	}
	if !acquired {
		return Result{}, ErrDeleteInProgress
	}
	defer func() {
		if err := ix.store.Del(context.WithoutCancel(ctx), key); err != nil {
			log.Warn().Err(err).Str("message_id", orig.ID).Msg("failed to release delete lock")
		}
	}()

	copies, err := ix.repo.Copies(ctx, orig.ID)
	if err != nil {
		return Result{}, err
	}

	errs := ix.fan.Run(ctx, "delete", len(copies), func(ctx context.Context, i int) error {
		conn, client, err := ix.copyTarget(ctx, copies[i])
		if err != nil {
			return err
		}
		err = client.Delete(ctx, webhook.TargetOf(conn), copies[i].ID)
		if errors.Is(err, webhook.ErrUnknownMessage) {
			return nil
		}
		if err != nil {
			ix.DeliveryFailed(ctx, conn, err)
		}
		return err
	})

	persist := context.WithoutCancel(ctx)
	if err := ix.repo.DeleteOriginal(persist, orig.ID); err != nil && !errors.Is(err, database.ErrNotFound) {
		return Result{}, err
	}
	stale := make([]string, 0, len(copies)+1)
	stale = append(stale, orig.ID)
	for _, c := range copies {
		stale = append(stale, c.ID)
	}
	ix.refs.Invalidate(persist, stale...)

	res := tally("delete", orig.ID, copies, errs)
	log.Info().
		Str("message_id", orig.ID).
		Int("succeeded", res.Succeeded).
		Int("total", res.Total).
		Msg("message deleted across hub")
	return res, nil
}

// ToggleReaction adds userID to emoji's reactors, or removes them if already
// present. New emoji are refused once the message holds MaxReactionKeys
// distinct ones; existing emoji stay toggleable.
func (ix *Index) ToggleReaction(ctx context.Context, anyID, emoji, userID string) (ReactionResult, error) {
	orig, err := ix.FindOrigin(ctx, anyID)
	if err != nil {
		return ReactionResult{}, err
	}
	hub, err := ix.hubs.GetHub(ctx, orig.HubID)
	if err != nil {
		return ReactionResult{}, err
	}
	if !hub.Settings.Has(models.SettingReactions) {
		return ReactionResult{}, ErrReactionsDisabled
	}

	var added bool
	next, err := ix.repo.UpdateReactions(ctx, orig.ID, func(current models.Reactions) (models.Reactions, error) {
		var err error
		added, err = toggle(current, emoji, userID)
		return current, err
	})
	if errors.Is(err, database.ErrNotFound) {
		return ReactionResult{}, ErrNotFound
	}
	if err != nil {
		return ReactionResult{}, err
	}
	orig.Reactions = next

	copies, err := ix.repo.Copies(ctx, orig.ID)
	if err != nil {
		return ReactionResult{}, err
	}
	delivery, err := ix.rerender(ctx, "reaction", orig, copies)
	if err != nil {
		return ReactionResult{}, err
	}
	return ReactionResult{Reactions: next, Added: added, Delivery: delivery}, nil
}

// toggle flips userID's membership under emoji in r and reports whether it
// was added. Emptied keys are removed.
func toggle(r models.Reactions, emoji, userID string) (bool, error) {
	users, exists := r[emoji]
	if !exists && len(r) >= models.MaxReactionKeys {
		return false, ErrUnknownReaction
	}
	for i, u := range users {
		if u == userID {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(r, emoji)
			} else {
				r[emoji] = users
			}
			return false, nil
		}
	}
	r[emoji] = append(users, userID)
	return true, nil
}
