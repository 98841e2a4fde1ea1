// Package memory provides an in-memory Store for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	entitled "github.com/fortunelabs/entitled"
	"github.com/fortunelabs/entitled/profile"
	"github.com/fortunelabs/entitled/store"
	"github.com/fortunelabs/entitled/types"
	"github.com/fortunelabs/entitled/usage"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Profile storage keyed by user ID
	profiles map[string]*profile.Profile

	// Usage log storage, append order preserved
	usageLog []*usage.LogEntry

	closed bool
}

func New() *Store {
	return &Store{
		profiles: make(map[string]*profile.Profile),
		usageLog: make([]*usage.LogEntry, 0),
	}
}

// Profile store implementation

func (s *Store) CreateProfile(_ context.Context, p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return entitled.ErrStoreClosed
	}
	if _, exists := s.profiles[p.UserID]; exists {
		return entitled.ErrProfileExists
	}
	s.profiles[p.UserID] = p.Clone()
	return nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, entitled.ErrStoreClosed
	}
	if p, ok := s.profiles[userID]; ok {
		return p.Clone(), nil
	}
	return nil, entitled.ErrProfileNotFound
}

// UpdateProfile applies a conditional write: the stored version must match
// the version the caller read. On success the stored version is bumped and
// the caller's copy is updated to match.
func (s *Store) UpdateProfile(_ context.Context, p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return entitled.ErrStoreClosed
	}
	current, ok := s.profiles[p.UserID]
	if !ok {
		return entitled.ErrProfileNotFound
	}
	if current.Version != p.Version {
		return entitled.ErrVersionConflict
	}

	stored := p.Clone()
	stored.Version++
	stored.Touch()
	s.profiles[p.UserID] = stored

	p.Version = stored.Version
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

// Usage log implementation

func (s *Store) AppendUsage(_ context.Context, e *usage.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return entitled.ErrStoreClosed
	}
	cp := *e
	s.usageLog = append(s.usageLog, &cp)
	return nil
}

func (s *Store) QueryUsage(_ context.Context, userID string, opts usage.QueryOpts) ([]*usage.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, entitled.ErrStoreClosed
	}

	result := make([]*usage.LogEntry, 0)
	for _, e := range s.usageLog {
		if e.UserID == userID && opts.Matches(e) {
			cp := *e
			result = append(result, &cp)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

func (s *Store) CountUsage(_ context.Context, userID string, day types.Date) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, entitled.ErrStoreClosed
	}

	var n int64
	for _, e := range s.usageLog {
		if e.UserID == userID && e.Day == day {
			n++
		}
	}
	return n, nil
}

func (s *Store) PurgeUsage(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, entitled.ErrStoreClosed
	}

	kept := s.usageLog[:0]
	var purged int64
	for _, e := range s.usageLog {
		if e.Timestamp.Before(before) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	s.usageLog = kept
	return purged, nil
}

// Core

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return entitled.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
