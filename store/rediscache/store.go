// Package rediscache wraps another store.Store with a Redis read-through
// cache for profiles. Reads hit Redis first; every profile write invalidates
// the cached row before and repopulates it after the inner write, so a cache
// outage degrades to the inner store's latency, never to stale entitlements.
//
// The usage log is deliberately not cached: it is append-only and queried
// rarely (support tooling), so caching buys nothing.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	entitled "github.com/fortunelabs/entitled"
	"github.com/fortunelabs/entitled/profile"
	entitledstore "github.com/fortunelabs/entitled/store"
	"github.com/fortunelabs/entitled/types"
	"github.com/fortunelabs/entitled/usage"
)

// DefaultTTL bounds how long a cached profile can serve reads. Kept short:
// the cache is invalidated on every write through this process, so the TTL
// only covers writes from other processes.
const DefaultTTL = 30 * time.Second

const keyPrefix = "entitled:profile:"

// compile-time interface check
var _ entitledstore.Store = (*Store)(nil)

// Store decorates an inner store with a Redis profile cache.
type Store struct {
	inner  entitledstore.Store
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the cache decorator.
type Option func(*Store)

// WithTTL overrides the cache entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the logger used for cache-degradation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New wraps inner with a Redis profile cache.
func New(inner entitledstore.Store, client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		inner:  inner,
		client: client,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func profileKey(userID string) string { return keyPrefix + userID }

// ==================== Profiles ====================

func (s *Store) CreateProfile(ctx context.Context, p *profile.Profile) error {
	if err := s.inner.CreateProfile(ctx, p); err != nil {
		return err
	}
	s.set(ctx, p)
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	if p, err := s.get(ctx, userID); err == nil {
		return p, nil
	} else if !errors.Is(err, entitled.ErrCacheMiss) {
		s.logger.Warn("profile cache read failed", "user_id", userID, "error", err)
	}

	p, err := s.inner.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.set(ctx, p)
	return p, nil
}

// UpdateProfile invalidates before the conditional write and repopulates
// after: a failure between the two leaves a miss, never a stale hit.
func (s *Store) UpdateProfile(ctx context.Context, p *profile.Profile) error {
	s.invalidate(ctx, p.UserID)
	if err := s.inner.UpdateProfile(ctx, p); err != nil {
		return err
	}
	s.set(ctx, p)
	return nil
}

// ==================== Usage Log (pass-through) ====================

func (s *Store) AppendUsage(ctx context.Context, e *usage.LogEntry) error {
	return s.inner.AppendUsage(ctx, e)
}

func (s *Store) QueryUsage(ctx context.Context, userID string, opts usage.QueryOpts) ([]*usage.LogEntry, error) {
	return s.inner.QueryUsage(ctx, userID, opts)
}

func (s *Store) CountUsage(ctx context.Context, userID string, day types.Date) (int64, error) {
	return s.inner.CountUsage(ctx, userID, day)
}

func (s *Store) PurgeUsage(ctx context.Context, before time.Time) (int64, error) {
	return s.inner.PurgeUsage(ctx, before)
}

// ==================== Core ====================

func (s *Store) Migrate(ctx context.Context) error {
	return s.inner.Migrate(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("entitled/rediscache: redis ping: %w", err)
	}
	return s.inner.Ping(ctx)
}

func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		s.logger.Warn("redis close failed", "error", err)
	}
	return s.inner.Close()
}

// ==================== Cache plumbing ====================

func (s *Store) get(ctx context.Context, userID string) (*profile.Profile, error) {
	raw, err := s.client.Get(ctx, profileKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, entitled.ErrCacheMiss
		}
		return nil, err
	}
	var p profile.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		// A corrupt entry behaves like a miss; the refill overwrites it.
		return nil, entitled.ErrCacheMiss
	}
	return &p, nil
}

func (s *Store) set(ctx context.Context, p *profile.Profile) {
	raw, err := json.Marshal(p)
	if err != nil {
		s.logger.Warn("profile cache encode failed", "user_id", p.UserID, "error", err)
		return
	}
	if err := s.client.Set(ctx, profileKey(p.UserID), raw, s.ttl).Err(); err != nil {
		s.logger.Warn("profile cache write failed", "user_id", p.UserID, "error", err)
	}
}

func (s *Store) invalidate(ctx context.Context, userID string) {
	if err := s.client.Del(ctx, profileKey(userID)).Err(); err != nil {
		s.logger.Warn("profile cache invalidation failed", "user_id", userID, "error", err)
	}
}
