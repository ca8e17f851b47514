// Package infraction manages hub-scoped blacklist records. The active lookup
// sits on the moderation hot path and is served from the cache store, including
// negative results.
package infraction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hubnet/cache"
	"hubnet/database"
	"hubnet/models"
)

var (
	ErrNotFound       = errors.New("infraction not found")
	ErrNotActive      = errors.New("infraction is not active")
	ErrAppealCooldown = errors.New("an appeal was already made recently")
)

// Repo is the durable infraction store.
type Repo interface {
	Insert(ctx context.Context, inf *models.Infraction) error
	Get(ctx context.Context, id string) (*models.Infraction, error)
	FindActive(ctx context.Context, hubID string, targetType models.TargetType, targetID string, now time.Time) (*models.Infraction, error)
	LastAppealedAt(ctx context.Context, hubID string, targetType models.TargetType, targetID string) (*time.Time, error)
	SetStatus(ctx context.Context, id string, status models.InfractionStatus, appealedAt *time.Time) error
	ListExpired(ctx context.Context, now time.Time) ([]*models.Infraction, error)
	ListByHub(ctx context.Context, hubID string) ([]*models.Infraction, error)
}

// HubLookup resolves the appeal cooldown of a hub.
type HubLookup interface {
	GetHub(ctx context.Context, id string) (*models.Hub, error)
}

// ExpiryHook runs after the sweep revokes an expired infraction.
type ExpiryHook func(ctx context.Context, inf *models.Infraction)

// Input describes a new infraction.
type Input struct {
	TargetID    string
	TargetType  models.TargetType
	HubID       string
	Reason      string
	ModeratorID string
	ExpiresAt   *time.Time
}

// entry is the cached active lookup; a nil Infraction records "none".
type entry struct {
	Infraction *models.Infraction `json:"infraction"`
}

// Store is the infraction service.
type Store struct {
	repo   Repo
	hubs   HubLookup
	active *cache.Cached[entry]
	now    func() time.Time

	mu    sync.RWMutex
	hooks []ExpiryHook
}

// New builds a store caching active lookups for ttl.
func New(repo Repo, hubs HubLookup, store cache.Store, ttl time.Duration) *Store {
	return &Store{
		repo:   repo,
		hubs:   hubs,
		active: cache.NewCached[entry](store, "infraction:", ttl),
		now:    time.Now,
	}
}

// OnExpire registers a hook called for every infraction the sweep revokes.
func (s *Store) OnExpire(hook ExpiryHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

func activeKey(hubID string, targetType models.TargetType, targetID string) string {
	return fmt.Sprintf("%s:%s:%s", hubID, targetType, targetID)
}

// Add creates an ACTIVE infraction.
func (s *Store) Add(ctx context.Context, in Input) (*models.Infraction, error) {
	inf := &models.Infraction{
		ID:          uuid.NewString(),
		TargetID:    in.TargetID,
		TargetType:  in.TargetType,
		HubID:       in.HubID,
		Status:      models.InfractionActive,
		Reason:      in.Reason,
		ModeratorID: in.ModeratorID,
		CreatedAt:   s.now(),
		ExpiresAt:   in.ExpiresAt,
	}
	if err := s.repo.Insert(ctx, inf); err != nil {
		return nil, err
	}
	s.active.Put(ctx, activeKey(inf.HubID, inf.TargetType, inf.TargetID), entry{Infraction: inf})

	log.Info().
		Str("infraction_id", inf.ID).
		Str("hub_id", inf.HubID).
		Str("target", string(inf.TargetType)+":"+inf.TargetID).
		Str("moderator_id", inf.ModeratorID).
		Msg("infraction added")
	return inf, nil
}

// FetchActive returns the infraction currently blocking the target in a hub,
// or nil when there is none.
func (s *Store) FetchActive(ctx context.Context, targetType models.TargetType, targetID, hubID string) (*models.Infraction, error) {
	e, err := s.active.Get(ctx, activeKey(hubID, targetType, targetID), func(ctx context.Context) (entry, error) {
		inf, err := s.repo.FindActive(ctx, hubID, targetType, targetID, s.now())
		if errors.Is(err, database.ErrNotFound) {
			return entry{}, nil
		}
		if err != nil {
			return entry{}, err
		}
		return entry{Infraction: inf}, nil
	})
	if err != nil {
		return nil, err
	}
	// A cached record may outlive its expiry until the sweep runs.
	if !e.Infraction.ActiveAt(s.now()) {
		return nil, nil
	}
	return e.Infraction, nil
}

// Get returns an infraction by id.
func (s *Store) Get(ctx context.Context, id string) (*models.Infraction, error) {
	inf, err := s.repo.Get(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return inf, err
}

// Revoke lifts an ACTIVE infraction.
func (s *Store) Revoke(ctx context.Context, id string) (*models.Infraction, error) {
	inf, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inf.Status != models.InfractionActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotActive, id, inf.Status)
	}
	if err := s.repo.SetStatus(ctx, id, models.InfractionRevoked, nil); err != nil {
		return nil, err
	}
	inf.Status = models.InfractionRevoked
	s.forget(ctx, inf)
	return inf, nil
}

// Appeal moves an ACTIVE infraction to APPEALED. Only one appeal per target
// and hub is accepted within the hub's appeal cooldown.
func (s *Store) Appeal(ctx context.Context, id string) (*models.Infraction, error) {
	inf, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inf.Status != models.InfractionActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotActive, id, inf.Status)
	}

	cooldown := models.DefaultAppealCooldown
	if hub, err := s.hubs.GetHub(ctx, inf.HubID); err == nil {
		cooldown = hub.Cooldown()
	} else {
		log.Warn().Err(err).Str("hub_id", inf.HubID).Msg("hub lookup failed, using default appeal cooldown")
	}

	now := s.now()
	last, err := s.repo.LastAppealedAt(ctx, inf.HubID, inf.TargetType, inf.TargetID)
	if err != nil {
		return nil, err
	}
	if last != nil {
		if wait := last.Add(cooldown).Sub(now); wait > 0 {
			return nil, fmt.Errorf("%w: try again in %s", ErrAppealCooldown, wait.Round(time.Minute))
		}
	}

	if err := s.repo.SetStatus(ctx, id, models.InfractionAppealed, &now); err != nil {
		return nil, err
	}
	inf.Status = models.InfractionAppealed
	inf.AppealedAt = &now
	s.forget(ctx, inf)
	return inf, nil
}

// List returns a hub's infractions, newest first.
func (s *Store) List(ctx context.Context, hubID string) ([]*models.Infraction, error) {
	return s.repo.ListByHub(ctx, hubID)
}

// SweepExpired revokes every ACTIVE infraction past its expiry and runs the
// expiry hooks for each. It returns how many were revoked.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.ListExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	hooks := append([]ExpiryHook(nil), s.hooks...)
	s.mu.RUnlock()

	revoked := 0
	for _, inf := range expired {
		if err := s.repo.SetStatus(ctx, inf.ID, models.InfractionRevoked, nil); err != nil {
			log.Error().Err(err).Str("infraction_id", inf.ID).Msg("failed to revoke expired infraction")
			continue
		}
		inf.Status = models.InfractionRevoked
		s.forget(ctx, inf)
		revoked++
		for _, hook := range hooks {
			hook(ctx, inf)
		}
	}
	return revoked, nil
}

func (s *Store) forget(ctx context.Context, inf *models.Infraction) {
	s.active.Invalidate(ctx, activeKey(inf.HubID, inf.TargetType, inf.TargetID))
}
