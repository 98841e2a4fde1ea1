// Package store defines the storage contract for the entitled engine.
package store

import (
	"context"
	"time"

	"github.com/fortunelabs/entitled/profile"
	"github.com/fortunelabs/entitled/types"
	"github.com/fortunelabs/entitled/usage"
)

// Store is the persistence interface injected into the engine.
//
// Concurrency contract: CreateProfile must be a conditional insert keyed on
// the user ID (a losing concurrent creator gets ErrProfileExists and simply
// re-reads the winner's row), and UpdateProfile must be a conditional write
// keyed on Profile.Version (mismatch returns ErrVersionConflict and writes
// nothing). Implementations return profiles the caller may freely mutate.
type Store interface {
	// Profile methods
	CreateProfile(ctx context.Context, p *profile.Profile) error
	GetProfile(ctx context.Context, userID string) (*profile.Profile, error)
	UpdateProfile(ctx context.Context, p *profile.Profile) error

	// Usage log methods
	AppendUsage(ctx context.Context, e *usage.LogEntry) error
	QueryUsage(ctx context.Context, userID string, opts usage.QueryOpts) ([]*usage.LogEntry, error)
	CountUsage(ctx context.Context, userID string, day types.Date) (int64, error)
	PurgeUsage(ctx context.Context, before time.Time) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
