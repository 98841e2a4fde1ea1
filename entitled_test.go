package entitled_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortunelabs/entitled"
	"github.com/fortunelabs/entitled/profile"
	"github.com/fortunelabs/entitled/store"
	"github.com/fortunelabs/entitled/store/memory"
	"github.com/fortunelabs/entitled/tier"
	"github.com/fortunelabs/entitled/usage"
)

// fakeClock is a mutable time source for exercising the daily reset.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T, opts ...entitled.Option) (*entitled.Engine, *fakeClock) {
	t.Helper()

	clock := newFakeClock(time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC))
	opts = append([]entitled.Option{entitled.WithClock(clock.Now)}, opts...)

	eng := entitled.New(memory.New(), opts...)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Stop() })

	return eng, clock
}

func TestLoadOrCreateProfile(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	t.Run("creates free profile on first touch", func(t *testing.T) {
		p, err := eng.LoadOrCreateProfile(ctx, "user_new")
		require.NoError(t, err)

		assert.Equal(t, tier.Free, p.Tier)
		assert.Equal(t, profile.StatusActive, p.Status)
		assert.Empty(t, p.Addons)
		assert.Equal(t, int64(0), p.DailyUsageCount)
	})

	t.Run("returns existing profile on second touch", func(t *testing.T) {
		first, err := eng.LoadOrCreateProfile(ctx, "user_twice")
		require.NoError(t, err)

		second, err := eng.LoadOrCreateProfile(ctx, "user_twice")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("rejects empty user id", func(t *testing.T) {
		_, err := eng.LoadOrCreateProfile(ctx, "")
		assert.ErrorIs(t, err, entitled.ErrInvalidInput)
	})

	t.Run("concurrent first touch yields one profile", func(t *testing.T) {
		const n = 16
		ids := make([]string, n)
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func(i int) {
				defer wg.Done()
				p, err := eng.LoadOrCreateProfile(ctx, "user_race")
				if err == nil {
					ids[i] = p.ID.String()
				}
			}(i)
		}
		wg.Wait()

		for i := 1; i < n; i++ {
			assert.Equal(t, ids[0], ids[i], "all callers must see the same profile")
		}
	})
}

func TestGetProfile(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.GetProfile(ctx, "nobody")
	assert.True(t, entitled.IsNotFound(err))

	_, err = eng.LoadOrCreateProfile(ctx, "someone")
	require.NoError(t, err)

	p, err := eng.GetProfile(ctx, "someone")
	require.NoError(t, err)
	assert.Equal(t, "someone", p.UserID)
}

func TestAuthorizeAndConsume(t *testing.T) {
	ctx := context.Background()

	t.Run("free tier walks down to denial", func(t *testing.T) {
		eng, _ := newTestEngine(t)

		// Free tier allows 3 predictions per day.
		wantRemaining := []int64{2, 1, 0}
		for i, want := range wantRemaining {
			res, err := eng.AuthorizeAndConsume(ctx, "walker", "prediction", "powerball")
			require.NoError(t, err)
			assert.True(t, res.Allowed, "consume %d should be allowed", i+1)
			assert.Equal(t, want, res.Remaining)
			assert.Equal(t, int64(i+1), res.Used)
		}

		res, err := eng.AuthorizeAndConsume(ctx, "walker", "prediction", "powerball")
		require.NoError(t, err, "a denial is a result, not an error")
		assert.False(t, res.Allowed)
		assert.Equal(t, int64(0), res.Remaining)
		assert.NotEmpty(t, res.Reason)

		// Denial must not consume.
		p, err := eng.GetProfile(ctx, "walker")
		require.NoError(t, err)
		assert.Equal(t, int64(3), p.DailyUsageCount)
	})

	t.Run("first consume of a new day resets to one", func(t *testing.T) {
		eng, clock := newTestEngine(t)

		for i := 0; i < 3; i++ {
			res, err := eng.AuthorizeAndConsume(ctx, "dayhop", "prediction", "")
			require.NoError(t, err)
			require.True(t, res.Allowed)
		}

		clock.Advance(24 * time.Hour)

		res, err := eng.AuthorizeAndConsume(ctx, "dayhop", "prediction", "")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(1), res.Used)
		assert.Equal(t, int64(2), res.Remaining)
	})

	t.Run("elite tier is unlimited", func(t *testing.T) {
		eng, _ := newTestEngine(t)

		_, err := eng.LoadOrCreateProfile(ctx, "whale")
		require.NoError(t, err)
		_, err = eng.ChangeTier(ctx, "whale", tier.Elite)
		require.NoError(t, err)

		for i := 0; i < 100; i++ {
			res, err := eng.AuthorizeAndConsume(ctx, "whale", "prediction", "")
			require.NoError(t, err)
			require.True(t, res.Allowed)
			assert.Equal(t, tier.QuotaUnlimited, res.Remaining)
		}
	})

	t.Run("concurrent consumes never exceed the quota", func(t *testing.T) {
		eng, _ := newTestEngine(t)

		const callers = 10
		allowed := int64(0)
		var mu sync.Mutex
		var wg sync.WaitGroup
		wg.Add(callers)
		for i := 0; i < callers; i++ {
			go func() {
				defer wg.Done()
				res, err := eng.AuthorizeAndConsume(ctx, "crowd", "prediction", "")
				if err == nil && res.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		// Transient conflict-exhaustion may deny fewer than quota, but the
		// counter must never pass the free-tier limit of 3.
		assert.LessOrEqual(t, allowed, int64(3))

		p, err := eng.GetProfile(ctx, "crowd")
		require.NoError(t, err)
		assert.Equal(t, allowed, p.DailyUsageCount)
	})

	t.Run("rejects empty action", func(t *testing.T) {
		eng, _ := newTestEngine(t)
		_, err := eng.AuthorizeAndConsume(ctx, "u", "", "")
		assert.ErrorIs(t, err, entitled.ErrInvalidInput)
	})
}

func TestRemaining(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.LoadOrCreateProfile(ctx, "reader")
	require.NoError(t, err)

	rem, err := eng.Remaining(ctx, "reader")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rem)

	_, err = eng.AuthorizeAndConsume(ctx, "reader", "prediction", "")
	require.NoError(t, err)

	rem, err = eng.Remaining(ctx, "reader")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rem)

	// A stale counter reads as the full quota without mutating the row.
	clock.Advance(24 * time.Hour)
	rem, err = eng.Remaining(ctx, "reader")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rem)

	p, err := eng.GetProfile(ctx, "reader")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.DailyUsageCount, "read path must not reset the stored counter")

	_, err = eng.Remaining(ctx, "ghost")
	assert.True(t, entitled.IsNotFound(err))
}

func TestChangeTier(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.LoadOrCreateProfile(ctx, "mover")
	require.NoError(t, err)

	p, err := eng.ChangeTier(ctx, "mover", tier.Pro)
	require.NoError(t, err)
	assert.Equal(t, tier.Pro, p.Tier)

	t.Run("downgrade strands the counter", func(t *testing.T) {
		// Consume 5 prediction units on pro (quota 25).
		for i := 0; i < 5; i++ {
			res, err := eng.AuthorizeAndConsume(ctx, "mover", "prediction", "")
			require.NoError(t, err)
			require.True(t, res.Allowed)
		}

		p, err := eng.ChangeTier(ctx, "mover", tier.Free)
		require.NoError(t, err)
		assert.Equal(t, int64(5), p.DailyUsageCount, "tier change must not touch the counter")

		res, err := eng.AuthorizeAndConsume(ctx, "mover", "prediction", "")
		require.NoError(t, err)
		assert.False(t, res.Allowed, "counter above the new quota blocks consumption")

		rem, err := eng.Remaining(ctx, "mover")
		require.NoError(t, err)
		assert.Equal(t, int64(0), rem, "remaining floors at zero")
	})

	t.Run("unknown code degrades to free", func(t *testing.T) {
		p, err := eng.ChangeTier(ctx, "mover", tier.Code("platinum"))
		require.NoError(t, err)
		assert.Equal(t, tier.Free, p.Tier)
	})
}

func TestNextTier(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.LoadOrCreateProfile(ctx, "climber")
	require.NoError(t, err)

	next, err := eng.NextTier(ctx, "climber")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, tier.Starter, next.Code)

	_, err = eng.ChangeTier(ctx, "climber", tier.Elite)
	require.NoError(t, err)

	next, err = eng.NextTier(ctx, "climber")
	require.NoError(t, err)
	assert.Nil(t, next, "no tier above elite")
}

func TestAddons(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.LoadOrCreateProfile(ctx, "buyer")
	require.NoError(t, err)

	t.Run("free tier cannot hold addons", func(t *testing.T) {
		_, err := eng.GrantAddon(ctx, "buyer", tier.AddonCosmic)
		assert.ErrorIs(t, err, entitled.ErrAddonNotPermitted)
	})

	t.Run("grant and revoke on starter", func(t *testing.T) {
		_, err := eng.ChangeTier(ctx, "buyer", tier.Starter)
		require.NoError(t, err)

		p, err := eng.GrantAddon(ctx, "buyer", tier.AddonCosmic)
		require.NoError(t, err)
		assert.True(t, p.HasAddon(tier.AddonCosmic))

		// Granting again is a no-op.
		p, err = eng.GrantAddon(ctx, "buyer", tier.AddonCosmic)
		require.NoError(t, err)
		assert.Len(t, p.Addons, 1)

		ok, err := eng.CanAccessAddon(ctx, "buyer", tier.AddonCosmic)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = eng.CanAccessAddon(ctx, "buyer", tier.AddonClaude)
		require.NoError(t, err)
		assert.False(t, ok, "starter only reaches addons it holds")

		p, err = eng.RevokeAddon(ctx, "buyer", tier.AddonCosmic)
		require.NoError(t, err)
		assert.False(t, p.HasAddon(tier.AddonCosmic))

		// Revoking an inactive addon is a no-op.
		_, err = eng.RevokeAddon(ctx, "buyer", tier.AddonCosmic)
		require.NoError(t, err)
	})

	t.Run("elite reaches every addon without grants", func(t *testing.T) {
		_, err := eng.ChangeTier(ctx, "buyer", tier.Elite)
		require.NoError(t, err)

		for _, a := range tier.AddonIDs() {
			ok, err := eng.CanAccessAddon(ctx, "buyer", a)
			require.NoError(t, err)
			assert.True(t, ok, "elite must reach %s", a)
		}
	})

	t.Run("unknown addon is invalid input", func(t *testing.T) {
		_, err := eng.GrantAddon(ctx, "buyer", tier.AddonID("horoscope"))
		assert.ErrorIs(t, err, entitled.ErrInvalidInput)
	})
}

func TestUsageHistory(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := eng.AuthorizeAndConsume(ctx, "logged", "prediction", "megamillions")
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	entries, err := eng.UsageHistory(ctx, "logged", usage.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, "logged", e.UserID)
		assert.Equal(t, "prediction", e.Action)
		assert.Equal(t, "megamillions", e.Detail)
	}

	t.Run("limit and offset", func(t *testing.T) {
		page, err := eng.UsageHistory(ctx, "logged", usage.QueryOpts{Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Len(t, page, 2)
	})

	t.Run("denied attempts are not logged", func(t *testing.T) {
		res, err := eng.AuthorizeAndConsume(ctx, "logged", "prediction", "")
		require.NoError(t, err)
		require.False(t, res.Allowed)

		entries, err := eng.UsageHistory(ctx, "logged", usage.QueryOpts{})
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})
}

func TestPurgeUsage(t *testing.T) {
	eng, clock := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.AuthorizeAndConsume(ctx, "old", "prediction", "")
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)
	_, err = eng.AuthorizeAndConsume(ctx, "old", "prediction", "")
	require.NoError(t, err)

	n, err := eng.PurgeUsage(ctx, clock.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := eng.UsageHistory(ctx, "old", usage.QueryOpts{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// conflictStore injects version conflicts ahead of a wrapped store to
// exercise the bounded retry loop.
type conflictStore struct {
	store.Store
	mu        sync.Mutex
	conflicts int
}

func (s *conflictStore) UpdateProfile(ctx context.Context, p *profile.Profile) error {
	s.mu.Lock()
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return entitled.ErrVersionConflict
	}
	s.mu.Unlock()
	return s.Store.UpdateProfile(ctx, p)
}

func TestConflictRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("absorbed within the bound", func(t *testing.T) {
		cs := &conflictStore{Store: memory.New(), conflicts: 2}
		eng := entitled.New(cs, entitled.WithConflictRetries(3))
		require.NoError(t, eng.Start(ctx))
		defer eng.Stop()

		res, err := eng.AuthorizeAndConsume(ctx, "bouncy", "prediction", "")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})

	t.Run("exhaustion is transient, not a denial", func(t *testing.T) {
		cs := &conflictStore{Store: memory.New(), conflicts: 10}
		eng := entitled.New(cs, entitled.WithConflictRetries(3))
		require.NoError(t, eng.Start(ctx))
		defer eng.Stop()

		_, err := eng.AuthorizeAndConsume(ctx, "stuck", "prediction", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, entitled.ErrRetriesExceeded)
		assert.True(t, entitled.IsTransient(err))
	})
}
