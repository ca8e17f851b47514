package infraction

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubnet/cache"
	"hubnet/database"
	"hubnet/models"
)

type stubHubs map[string]*models.Hub

func (s stubHubs) GetHub(_ context.Context, id string) (*models.Hub, error) {
	if h, ok := s[id]; ok {
		return h, nil
	}
	return nil, database.ErrNotFound
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestStore(t *testing.T, hubs stubHubs) (*Store, *clock, *miniredis.Miniredis) {
	t.Helper()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "hubnet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := New(database.NewInfractionDB(db), hubs, cache.NewRedisStore(client), 10*time.Minute)
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.now = c.now
	return s, c, mr
}

func TestFetchActive_NegativeThenAdd(t *testing.T) {
	s, _, mr := newTestStore(t, nil)
	ctx := context.Background()

	inf, err := s.FetchActive(ctx, models.TargetUser, "u1", "h1")
	require.NoError(t, err)
	assert.Nil(t, inf)
	assert.True(t, mr.Exists("infraction:h1:user:u1"), "negative result is cached")

	added, err := s.Add(ctx, Input{TargetID: "u1", TargetType: models.TargetUser, HubID: "h1", Reason: "spam", ModeratorID: "m"})
	require.NoError(t, err)

	inf, err = s.FetchActive(ctx, models.TargetUser, "u1", "h1")
	require.NoError(t, err)
	require.NotNil(t, inf)
	assert.Equal(t, added.ID, inf.ID)

	// Server bans are a separate target.
	inf, err = s.FetchActive(ctx, models.TargetServer, "u1", "h1")
	require.NoError(t, err)
	assert.Nil(t, inf)
}

func TestFetchActive_ExpiredCacheEntryIgnored(t *testing.T) {
	s, c, _ := newTestStore(t, nil)
	ctx := context.Background()

	exp := c.t.Add(5 * time.Minute)
	_, err := s.Add(ctx, Input{TargetID: "u1", TargetType: models.TargetUser, HubID: "h1", Reason: "spam", ModeratorID: "m", ExpiresAt: &exp})
	require.NoError(t, err)

	c.t = exp.Add(-time.Second)
	inf, err := s.FetchActive(ctx, models.TargetUser, "u1", "h1")
	require.NoError(t, err)
	assert.NotNil(t, inf)

	c.t = exp
	inf, err = s.FetchActive(ctx, models.TargetUser, "u1", "h1")
	require.NoError(t, err)
	assert.Nil(t, inf)
}

func TestRevoke(t *testing.T) {
	s, _, _ := newTestStore(t, nil)
	ctx := context.Background()

	added, err := s.Add(ctx, Input{TargetID: "g1", TargetType: models.TargetServer, HubID: "h1", Reason: "raid", ModeratorID: "m"})
	require.NoError(t, err)

	_, err = s.Revoke(ctx, added.ID)
	require.NoError(t, err)

	inf, err := s.FetchActive(ctx, models.TargetServer, "g1", "h1")
	require.NoError(t, err)
	assert.Nil(t, inf)

	_, err = s.Revoke(ctx, added.ID)
	assert.ErrorIs(t, err, ErrNotActive)
	_, err = s.Revoke(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppeal_Cooldown(t *testing.T) {
	hubs := stubHubs{"h1": {ID: "h1", AppealCooldown: 0}}
	s, c, _ := newTestStore(t, hubs)
	ctx := context.Background()

	first, err := s.Add(ctx, Input{TargetID: "u1", TargetType: models.TargetUser, HubID: "h1", Reason: "a", ModeratorID: "m"})
	require.NoError(t, err)
	appealed, err := s.Appeal(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InfractionAppealed, appealed.Status)

	c.t = c.t.Add(24 * time.Hour)
	second, err := s.Add(ctx, Input{TargetID: "u1", TargetType: models.TargetUser, HubID: "h1", Reason: "b", ModeratorID: "m"})
	require.NoError(t, err)
	_, err = s.Appeal(ctx, second.ID)
	assert.ErrorIs(t, err, ErrAppealCooldown)

	// Default cooldown is seven days.
	c.t = c.t.Add(6 * 24 * time.Hour)
	_, err = s.Appeal(ctx, second.ID)
	assert.NoError(t, err)
}

func TestAppeal_HubCooldownOverride(t *testing.T) {
	hubs := stubHubs{"h1": {ID: "h1", AppealCooldown: time.Hour}}
	s, c, _ := newTestStore(t, hubs)
	ctx := context.Background()

	first, err := s.Add(ctx, Input{TargetID: "u1", TargetType: models.TargetUser, HubID: "h1", Reason: "a", ModeratorID: "m"})
	require.NoError(t, err)
	_, err = s.Appeal(ctx, first.ID)
	require.NoError(t, err)

	c.t = c.t.Add(2 * time.Hour)
	second, err := s.Add(ctx, Input{TargetID: "u1", TargetType: models.TargetUser, HubID: "h1", Reason: "b", ModeratorID: "m"})
	require.NoError(t, err)
	_, err = s.Appeal(ctx, second.ID)
	assert.NoError(t, err)
}

func TestSweepExpired_RevokesAndRunsHooks(t *testing.T) {
	s, c, _ := newTestStore(t, nil)
	ctx := context.Background()

	soon := c.t.Add(time.Minute)
	later := c.t.Add(time.Hour)
	expiring, err := s.Add(ctx, Input{TargetID: "u1", TargetType: models.TargetUser, HubID: "h1", Reason: "a", ModeratorID: "m", ExpiresAt: &soon})
	require.NoError(t, err)
	_, err = s.Add(ctx, Input{TargetID: "u2", TargetType: models.TargetUser, HubID: "h1", Reason: "b", ModeratorID: "m", ExpiresAt: &later})
	require.NoError(t, err)
	_, err = s.Add(ctx, Input{TargetID: "u3", TargetType: models.TargetUser, HubID: "h1", Reason: "c", ModeratorID: "m"})
	require.NoError(t, err)

	var seen []string
	s.OnExpire(func(_ context.Context, inf *models.Infraction) { seen = append(seen, inf.ID) })

	c.t = c.t.Add(2 * time.Minute)
	n, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{expiring.ID}, seen)

	got, err := s.Get(ctx, expiring.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InfractionRevoked, got.Status)

	n, err = s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := s.List(ctx, "h1")
	require.NoError(t, err)
	assert.Len(t, list, 3)
}
