// Package registry tracks which channels belong to which hub. Reads are served
// from the cache store; writes go to the durable store first and then
// invalidate the affected cache entries.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"hubnet/cache"
	"hubnet/database"
	"hubnet/models"
)

// ErrNotFound is returned when a channel is not connected to any hub, or a
// hub does not exist.
var ErrNotFound = errors.New("registry: not found")

// channelHubKey is the secondary lookup hash: field channelID → hubID.
const channelHubKey = "connections:channel_hub"

// ConnectionRepo is the durable connection store.
type ConnectionRepo interface {
	Create(ctx context.Context, conn *models.Connection) error
	Update(ctx context.Context, conn *models.Connection) error
	Delete(ctx context.Context, channelID string) error
	SetConnected(ctx context.Context, channelID string, connected bool) error
	Touch(ctx context.Context, channelID string, at time.Time) error
	GetByChannel(ctx context.Context, channelID string) (*models.Connection, error)
	ListByHub(ctx context.Context, hubID string) ([]*models.Connection, error)
}

// HubRepo is the durable hub store.
type HubRepo interface {
	Create(ctx context.Context, hub *models.Hub) error
	Update(ctx context.Context, hub *models.Hub) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Hub, error)
}

// Registry is the cached view of hubs and their connections.
type Registry struct {
	conns ConnectionRepo
	hubs  HubRepo
	store cache.Store

	lists    *cache.Cached[[]*models.Connection]
	hubCache *cache.Cached[models.Hub]
}

// New builds a registry. connTTL bounds how long a stale connection list may
// be served; hubTTL does the same for hub records.
func New(conns ConnectionRepo, hubs HubRepo, store cache.Store, connTTL, hubTTL time.Duration) *Registry {
	return &Registry{
		conns:    conns,
		hubs:     hubs,
		store:    store,
		lists:    cache.NewCached[[]*models.Connection](store, "hub:", connTTL),
		hubCache: cache.NewCached[models.Hub](store, "hubinfo:", hubTTL),
	}
}

func listKey(hubID string) string {
	return hubID + ":connections"
}

// ListConnections returns every connection of a hub, most recently active
// first.
func (r *Registry) ListConnections(ctx context.Context, hubID string) ([]*models.Connection, error) {
	return r.lists.Get(ctx, listKey(hubID), func(ctx context.Context) ([]*models.Connection, error) {
		return r.conns.ListByHub(ctx, hubID)
	})
}

// Targets returns the connected members of a hub other than exclude.
func (r *Registry) Targets(ctx context.Context, hubID, excludeChannelID string) ([]*models.Connection, error) {
	all, err := r.ListConnections(ctx, hubID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Connection, 0, len(all))
	for _, c := range all {
		if c.Connected && c.ChannelID != excludeChannelID {
			out = append(out, c)
		}
	}
	return out, nil
}

// Get returns the connection for a channel.
func (r *Registry) Get(ctx context.Context, channelID string) (*models.Connection, error) {
	hubID, err := r.store.HGet(ctx, channelHubKey, channelID)
	if err == nil {
		list, err := r.ListConnections(ctx, hubID)
		if err == nil {
			for _, c := range list {
				if c.ChannelID == channelID {
					return c, nil
				}
			}
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		log.Warn().Err(err).Str("channel_id", channelID).Msg("channel lookup cache read failed")
	}

	conn, err := r.conns.GetByChannel(ctx, channelID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: channel %s", ErrNotFound, channelID)
	}
	if err != nil {
		return nil, err
	}
	r.remember(ctx, conn)
	return conn, nil
}

// Create stores a new connection.
func (r *Registry) Create(ctx context.Context, conn *models.Connection) error {
	if err := r.conns.Create(ctx, conn); err != nil {
		return err
	}
	r.invalidate(ctx, conn.HubID)
	r.remember(ctx, conn)
	return nil
}

// Update writes the mutable connection fields.
func (r *Registry) Update(ctx context.Context, conn *models.Connection) error {
	if err := r.conns.Update(ctx, conn); err != nil {
		return mapNotFound(err)
	}
	r.invalidate(ctx, conn.HubID)
	r.remember(ctx, conn)
	return nil
}

// Delete removes a channel from its hub.
func (r *Registry) Delete(ctx context.Context, channelID string) error {
	conn, err := r.conns.GetByChannel(ctx, channelID)
	if err != nil {
		return mapNotFound(err)
	}
	if err := r.conns.Delete(ctx, channelID); err != nil {
		return mapNotFound(err)
	}
	r.invalidate(ctx, conn.HubID)
	r.forget(ctx, channelID)
	return nil
}

// SetConnected includes or excludes a channel from fan-out without deleting
// its history.
func (r *Registry) SetConnected(ctx context.Context, channelID string, connected bool) error {
	conn, err := r.conns.GetByChannel(ctx, channelID)
	if err != nil {
		return mapNotFound(err)
	}
	if err := r.conns.SetConnected(ctx, channelID, connected); err != nil {
		return mapNotFound(err)
	}
	r.invalidate(ctx, conn.HubID)
	return nil
}

// Touch records channel activity. The cached list is left alone and picks up
// the new ordering when it expires.
func (r *Registry) Touch(ctx context.Context, channelID string, at time.Time) error {
	return r.conns.Touch(ctx, channelID, at)
}

func (r *Registry) invalidate(ctx context.Context, hubID string) {
	r.lists.Invalidate(ctx, listKey(hubID))
}

func (r *Registry) remember(ctx context.Context, conn *models.Connection) {
	if err := r.store.HSet(ctx, channelHubKey, conn.ChannelID, conn.HubID); err != nil {
		log.Warn().Err(err).Str("channel_id", conn.ChannelID).Msg("channel lookup cache write failed")
	}
}

func (r *Registry) forget(ctx context.Context, channelIDs ...string) {
	if len(channelIDs) == 0 {
		return
	}
	if err := r.store.HDel(ctx, channelHubKey, channelIDs...); err != nil {
		log.Warn().Err(err).Strs("channel_ids", channelIDs).Msg("channel lookup cache delete failed")
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
