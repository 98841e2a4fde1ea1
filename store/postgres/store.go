// Package postgres implements store.Store on PostgreSQL via database/sql
// and lib/pq. The optimistic-concurrency contract maps directly onto SQL:
// creation is INSERT ... ON CONFLICT DO NOTHING and updates are conditional
// on the version column.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	entitled "github.com/fortunelabs/entitled"
	"github.com/fortunelabs/entitled/profile"
	entitledstore "github.com/fortunelabs/entitled/store"
	"github.com/fortunelabs/entitled/types"
	"github.com/fortunelabs/entitled/usage"
)

// compile-time interface check
var _ entitledstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New opens a PostgreSQL store from a connection string.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("entitled/postgres: open: %w", err)
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing connection pool. The caller keeps ownership of
// pool-level settings; Close still closes it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying pool for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if err := runMigrations(ctx, s.db); err != nil {
		return fmt.Errorf("%w: %w", entitled.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Profiles ====================

func (s *Store) CreateProfile(ctx context.Context, p *profile.Profile) error {
	r := toProfileRow(p)
	res, err := s.db.ExecContext(ctx, `
INSERT INTO entitled_profiles
    (id, user_id, tier, status, addons, daily_usage_count, last_reset_date, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (user_id) DO NOTHING`,
		r.ID, r.UserID, r.Tier, r.Status, r.Addons,
		r.DailyUsageCount, r.LastResetDate, r.Version, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return entitled.ErrProfileExists
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	r := new(profileRow)
	err := s.db.QueryRowContext(ctx, `
SELECT id, user_id, tier, status, addons, daily_usage_count, last_reset_date, version, created_at, updated_at
FROM entitled_profiles
WHERE user_id = $1`, userID,
	).Scan(
		&r.ID, &r.UserID, &r.Tier, &r.Status, &r.Addons,
		&r.DailyUsageCount, &r.LastResetDate, &r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entitled.ErrProfileNotFound
		}
		return nil, err
	}
	return fromProfileRow(r)
}

// UpdateProfile writes the profile conditionally on the version the caller
// read. Zero rows affected means either a concurrent writer won (conflict)
// or the row is gone; the two are distinguished with a follow-up read.
func (s *Store) UpdateProfile(ctx context.Context, p *profile.Profile) error {
	r := toProfileRow(p)
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
UPDATE entitled_profiles
SET tier = $1,
    status = $2,
    addons = $3,
    daily_usage_count = $4,
    last_reset_date = $5,
    version = version + 1,
    updated_at = $6
WHERE user_id = $7 AND version = $8`,
		r.Tier, r.Status, r.Addons, r.DailyUsageCount, r.LastResetDate,
		now, r.UserID, r.Version,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var n int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM entitled_profiles WHERE user_id = $1`, r.UserID,
		).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return entitled.ErrProfileNotFound
		}
		return entitled.ErrVersionConflict
	}

	p.Version++
	p.UpdatedAt = now
	return nil
}

// ==================== Usage Log ====================

func (s *Store) AppendUsage(ctx context.Context, e *usage.LogEntry) error {
	r := toUsageRow(e)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO entitled_usage_log (id, user_id, action, detail, day, ts)
VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.UserID, r.Action, r.Detail, r.Day, r.Timestamp,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return entitled.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) QueryUsage(ctx context.Context, userID string, opts usage.QueryOpts) ([]*usage.LogEntry, error) {
	query := `
SELECT id, user_id, action, detail, day, ts
FROM entitled_usage_log
WHERE user_id = $1`
	args := []interface{}{userID}

	if opts.From != "" {
		args = append(args, string(opts.From))
		query += fmt.Sprintf(" AND day >= $%d", len(args))
	}
	if opts.To != "" {
		args = append(args, string(opts.To))
		query += fmt.Sprintf(" AND day <= $%d", len(args))
	}
	if opts.Action != "" {
		args = append(args, opts.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	query += " ORDER BY ts ASC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*usage.LogEntry
	for rows.Next() {
		r := new(usageRow)
		if err := rows.Scan(&r.ID, &r.UserID, &r.Action, &r.Detail, &r.Day, &r.Timestamp); err != nil {
			return nil, err
		}
		e, err := fromUsageRow(r)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) CountUsage(ctx context.Context, userID string, day types.Date) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entitled_usage_log WHERE user_id = $1 AND day = $2`,
		userID, string(day),
	).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) PurgeUsage(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM entitled_usage_log WHERE ts < $1`, before.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
