// Package identity maps every relayed copy back to its original message and
// propagates edits, deletes and reactions to all copies.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"hubnet/cache"
	"hubnet/database"
	"hubnet/fanout"
	"hubnet/models"
	"hubnet/render"
	"hubnet/webhook"
)

var (
	ErrNotFound          = errors.New("message not found")
	ErrDeleteInProgress  = errors.New("message is already being deleted")
	ErrUnknownReaction   = errors.New("this reaction doesn't exist")
	ErrReactionsDisabled = errors.New("reactions are disabled in this hub")
	// ErrTargetUnavailable marks a copy whose channel left the hub or was
	// disconnected.
	ErrTargetUnavailable = errors.New("target channel is no longer connected")
)

// Repo is the durable message store.
type Repo interface {
	SaveBroadcast(ctx context.Context, orig *models.OriginalMessage, copies []models.BroadcastMessage) error
	GetOriginal(ctx context.Context, id string) (*models.OriginalMessage, error)
	OriginIDOf(ctx context.Context, messageID string) (string, error)
	Copies(ctx context.Context, originalID string) ([]models.BroadcastMessage, error)
	UpdateContent(ctx context.Context, id, content string) error
	UpdateReactions(ctx context.Context, id string, fn func(models.Reactions) (models.Reactions, error)) (models.Reactions, error)
	DeleteOriginal(ctx context.Context, id string) error
}

// Connections resolves where a copy lives.
type Connections interface {
	Get(ctx context.Context, channelID string) (*models.Connection, error)
	SetConnected(ctx context.Context, channelID string, connected bool) error
}

// Hubs resolves hub settings.
type Hubs interface {
	GetHub(ctx context.Context, id string) (*models.Hub, error)
}

// Webhooks hands out pooled webhook clients.
type Webhooks interface {
	Get(url string) (webhook.Client, error)
}

// Result counts per-copy outcomes of an edit or delete.
type Result struct {
	Succeeded int
	Total     int
}

// ReactionResult is the outcome of a reaction toggle.
type ReactionResult struct {
	Reactions models.Reactions
	Added     bool
	Delivery  Result
}

// Index is the message identity index.
type Index struct {
	repo     Repo
	conns    Connections
	hubs     Hubs
	webhooks Webhooks
	fan      *fanout.Dispatcher
	render   *render.Renderer
	store    cache.Store
	refs     *cache.Cached[string]
	lockTTL  time.Duration
}

// Config bundles the index collaborators.
type Config struct {
	Repo        Repo
	Connections Connections
	Hubs        Hubs
	Webhooks    Webhooks
	Dispatcher  *fanout.Dispatcher
	Renderer    *render.Renderer
	Store       cache.Store
	RefTTL      time.Duration
	LockTTL     time.Duration
}

func New(cfg Config) *Index {
	return &Index{
		repo:     cfg.Repo,
		conns:    cfg.Connections,
		hubs:     cfg.Hubs,
		webhooks: cfg.Webhooks,
		fan:      cfg.Dispatcher,
		render:   cfg.Renderer,
		store:    cfg.Store,
		refs:     cache.NewCached[string](cfg.Store, "msgref:", cfg.RefTTL),
		lockTTL:  cfg.LockTTL,
	}
}

// Record stores an accepted message and its delivered copies and primes the
// reverse references.
func (ix *Index) Record(ctx context.Context, orig *models.OriginalMessage, copies []models.BroadcastMessage) error {
	if err := ix.repo.SaveBroadcast(ctx, orig, copies); err != nil {
		return err
	}
	ix.refs.Put(ctx, orig.ID, orig.ID)
	for _, c := range copies {
		ix.refs.Put(ctx, c.ID, orig.ID)
	}
	return nil
}

// FindOrigin resolves an original or copy id to the original message.
func (ix *Index) FindOrigin(ctx context.Context, anyID string) (*models.OriginalMessage, error) {
	originID, err := ix.refs.Get(ctx, anyID, func(ctx context.Context) (string, error) {
		return ix.repo.OriginIDOf(ctx, anyID)
	})
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, anyID)
	}
	if err != nil {
		return nil, err
	}

	orig, err := ix.repo.GetOriginal(ctx, originID)
	if errors.Is(err, database.ErrNotFound) {
		// The reference outlived the message.
		ix.refs.Invalidate(ctx, anyID)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, anyID)
	}
	return orig, err
}

// Reactions returns the current reaction map of a message.
func (ix *Index) Reactions(ctx context.Context, anyID string) (models.Reactions, error) {
	orig, err := ix.FindOrigin(ctx, anyID)
	if err != nil {
		return nil, err
	}
	return orig.Reactions, nil
}

// ReplyContext builds the reply reference for a message replying to
// replyToID, with a jump link for every channel holding a copy. It returns
// nil when the replied-to message is not tracked.
func (ix *Index) ReplyContext(ctx context.Context, replyToID string) (*render.ReplyRef, error) {
	if replyToID == "" {
		return nil, nil
	}
	orig, err := ix.FindOrigin(ctx, replyToID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	copies, err := ix.repo.Copies(ctx, orig.ID)
	if err != nil {
		return nil, err
	}

	ref := &render.ReplyRef{
		AuthorName: orig.AuthorName,
		Content:    orig.Content,
		JumpURLs:   make(map[string]string, len(copies)+1),
	}
	ref.JumpURLs[orig.ChannelID] = render.JumpURL(orig.GuildID, orig.ChannelID, orig.ID)
	for _, c := range copies {
		ref.JumpURLs[c.ChannelID] = render.JumpURL(c.GuildID, c.ChannelID, c.ID)
	}
	return ref, nil
}

// DeliveryFailed reacts to a failed webhook call for conn. A webhook that no
// longer exists takes its connection out of fan-out.
func (ix *Index) DeliveryFailed(ctx context.Context, conn *models.Connection, err error) {
	if !errors.Is(err, webhook.ErrUnknownWebhook) {
		return
	}
	if err := ix.conns.SetConnected(context.WithoutCancel(ctx), conn.ChannelID, false); err != nil {
		log.Error().Err(err).Str("channel_id", conn.ChannelID).Msg("failed to disconnect channel with unknown webhook")
		return
	}
	log.Warn().
		Str("channel_id", conn.ChannelID).
		Str("hub_id", conn.HubID).
		Msg("webhook is gone, channel disconnected from hub")
}

// copyTarget resolves the live connection and client for a copy.
func (ix *Index) copyTarget(ctx context.Context, c models.BroadcastMessage) (*models.Connection, webhook.Client, error) {
	conn, err := ix.conns.Get(ctx, c.ChannelID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTargetUnavailable, err)
	}
	if !conn.Connected {
		return nil, nil, ErrTargetUnavailable
	}
	client, err := ix.webhooks.Get(conn.WebhookURL)
	if err != nil {
		return conn, nil, err
	}
	return conn, client, nil
}

// rerender pushes a fresh render of orig to every copy.
func (ix *Index) rerender(ctx context.Context, operation string, orig *models.OriginalMessage, copies []models.BroadcastMessage) (Result, error) {
	hub, err := ix.hubs.GetHub(ctx, orig.HubID)
	if err != nil {
		return Result{}, err
	}
	reply, err := ix.ReplyContext(ctx, orig.ReplyToID)
	if err != nil {
		log.Warn().Err(err).Str("message_id", orig.ID).Msg("reply context unavailable")
	}

	errs := ix.fan.Run(ctx, operation, len(copies), func(ctx context.Context, i int) error {
		conn, client, err := ix.copyTarget(ctx, copies[i])
		if err != nil {
			return err
		}
		payload := ix.render.Message(render.Input{Hub: hub, Message: orig, Target: conn, Reply: reply})
		if err := client.Edit(ctx, webhook.TargetOf(conn), copies[i].ID, payload); err != nil {
			ix.DeliveryFailed(ctx, conn, err)
			return err
		}
		return nil
	})
	return tally(operation, orig.ID, copies, errs), nil
}

func tally(operation, originID string, copies []models.BroadcastMessage, errs []error) Result {
	res := Result{Total: len(copies)}
	for i, err := range errs {
		if err == nil {
			res.Succeeded++
			continue
		}
		log.Debug().
			Err(err).
			Str("operation", operation).
			Str("message_id", originID).
			Str("channel_id", copies[i].ChannelID).
			Msg("copy update failed")
	}
	return res
}
