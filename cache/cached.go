package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Cached is a read-through TTL decorator for one entity type. Values are
// stored as JSON under prefix+key. Cache errors and undecodable entries are
// never surfaced: the loader is the source of truth.
type Cached[T any] struct {
	store  Store
	prefix string
	ttl    time.Duration
}

// NewCached builds a decorator storing entries under prefix.
func NewCached[T any](store Store, prefix string, ttl time.Duration) *Cached[T] {
	return &Cached[T]{store: store, prefix: prefix, ttl: ttl}
}

// Key returns the full cache key for key.
func (c *Cached[T]) Key(key string) string {
	return c.prefix + key
}

// Get returns the cached value for key, calling load on a miss or a parse
// failure and repopulating the cache with its result.
func (c *Cached[T]) Get(ctx context.Context, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Peek(ctx, key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.Put(ctx, key, v)
	return v, nil
}

// Peek returns the cached value without loading.
func (c *Cached[T]) Peek(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := c.store.Get(ctx, c.Key(key))
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			log.Warn().Err(err).Str("key", c.Key(key)).Msg("cache read failed")
		}
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Debug().Err(err).Str("key", c.Key(key)).Msg("dropping undecodable cache entry")
		_ = c.store.Del(ctx, c.Key(key))
		return zero, false
	}
	return v, true
}

// Put stores v under key with the decorator's TTL.
func (c *Cached[T]) Put(ctx context.Context, key string, v T) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", c.Key(key)).Msg("cache encode failed")
		return
	}
	if err := c.store.Set(ctx, c.Key(key), raw, c.ttl); err != nil {
		log.Warn().Err(err).Str("key", c.Key(key)).Msg("cache write failed")
	}
}

// Invalidate removes the entries for keys.
func (c *Cached[T]) Invalidate(ctx context.Context, keys ...string) {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.Key(k)
	}
	if err := c.store.Del(ctx, full...); err != nil {
		log.Warn().Err(err).Strs("keys", full).Msg("cache invalidate failed")
	}
}
