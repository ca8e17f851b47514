package registry

import (
	"context"
	"errors"
	"fmt"

	"hubnet/database"
	"hubnet/models"
)

// GetHub returns a hub by id.
func (r *Registry) GetHub(ctx context.Context, id string) (*models.Hub, error) {
	hub, err := r.hubCache.Get(ctx, id, func(ctx context.Context) (models.Hub, error) {
		h, err := r.hubs.Get(ctx, id)
		if err != nil {
			return models.Hub{}, err
		}
		return *h, nil
	})
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: hub %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &hub, nil
}

// CreateHub stores a new hub.
func (r *Registry) CreateHub(ctx context.Context, hub *models.Hub) error {
	if err := r.hubs.Create(ctx, hub); err != nil {
		return err
	}
	r.hubCache.Put(ctx, hub.ID, *hub)
	return nil
}

// UpdateHub writes a hub and drops its cached snapshot.
func (r *Registry) UpdateHub(ctx context.Context, hub *models.Hub) error {
	if err := r.hubs.Update(ctx, hub); err != nil {
		return mapNotFound(err)
	}
	r.hubCache.Invalidate(ctx, hub.ID)
	return nil
}

// DeleteHub removes a hub together with all of its connections.
func (r *Registry) DeleteHub(ctx context.Context, id string) error {
	members, err := r.conns.ListByHub(ctx, id)
	if err != nil {
		return err
	}
	if err := r.hubs.Delete(ctx, id); err != nil {
		return mapNotFound(err)
	}

	channels := make([]string, len(members))
	for i, c := range members {
		channels[i] = c.ChannelID
	}
	r.forget(ctx, channels...)
	r.invalidate(ctx, id)
	r.hubCache.Invalidate(ctx, id)
	return nil
}
