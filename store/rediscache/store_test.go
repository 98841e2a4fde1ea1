package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	entitled "github.com/fortunelabs/entitled"
	"github.com/fortunelabs/entitled/profile"
	"github.com/fortunelabs/entitled/store/memory"
	"github.com/fortunelabs/entitled/tier"
	"github.com/fortunelabs/entitled/types"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s := New(memory.New(), client, WithTTL(time.Minute))
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestGetProfileCaching(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	p := profile.New("user_1", types.Date("2025-06-15"))
	require.NoError(t, s.CreateProfile(ctx, p))

	t.Run("create populates the cache", func(t *testing.T) {
		assert.True(t, mr.Exists("entitled:profile:user_1"))
	})

	t.Run("read returns the cached row", func(t *testing.T) {
		got, err := s.GetProfile(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.Equal(t, tier.Free, got.Tier)
	})

	t.Run("miss falls through and refills", func(t *testing.T) {
		mr.FlushAll()
		got, err := s.GetProfile(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.True(t, mr.Exists("entitled:profile:user_1"))
	})

	t.Run("unknown user propagates not found", func(t *testing.T) {
		_, err := s.GetProfile(ctx, "ghost")
		assert.ErrorIs(t, err, entitled.ErrProfileNotFound)
	})

	t.Run("expired entry falls through", func(t *testing.T) {
		mr.FastForward(2 * time.Minute)
		got, err := s.GetProfile(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
	})
}

func TestUpdateProfileInvalidates(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	p := profile.New("user_1", types.Date("2025-06-15"))
	require.NoError(t, s.CreateProfile(ctx, p))

	p.Tier = tier.Pro
	require.NoError(t, s.UpdateProfile(ctx, p))

	got, err := s.GetProfile(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, tier.Pro, got.Tier)
	assert.Equal(t, int64(2), got.Version)

	t.Run("version conflict leaves no stale entry", func(t *testing.T) {
		stale := p.Clone()
		stale.Version = 1
		stale.Tier = tier.Elite

		err := s.UpdateProfile(ctx, stale)
		require.ErrorIs(t, err, entitled.ErrVersionConflict)

		// The failed write invalidated the cache; the next read refills from
		// the inner store with the real row.
		assert.False(t, mr.Exists("entitled:profile:user_1"))
		got, err := s.GetProfile(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, tier.Pro, got.Tier)
	})
}

func TestCorruptEntryBehavesLikeMiss(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	p := profile.New("user_1", types.Date("2025-06-15"))
	require.NoError(t, s.CreateProfile(ctx, p))

	require.NoError(t, mr.Set("entitled:profile:user_1", "not json"))

	got, err := s.GetProfile(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestPassThrough(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Ping(ctx))
}
