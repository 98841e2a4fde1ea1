// Package sqlite implements store.Store on SQLite via database/sql and
// mattn/go-sqlite3. Suited to single-process deployments and tests; the
// concurrency contract is the same as the PostgreSQL store's.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	entitled "github.com/fortunelabs/entitled"
	"github.com/fortunelabs/entitled/id"
	"github.com/fortunelabs/entitled/profile"
	entitledstore "github.com/fortunelabs/entitled/store"
	"github.com/fortunelabs/entitled/tier"
	"github.com/fortunelabs/entitled/types"
	"github.com/fortunelabs/entitled/usage"
)

// compile-time interface check
var _ entitledstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens a SQLite store at the given path. Use ":memory:" for an
// ephemeral database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("entitled/sqlite: open: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent engine retries.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
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

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Profiles ====================

func (s *Store) CreateProfile(ctx context.Context, p *profile.Profile) error {
	addons, err := encodeAddons(p.Addons)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO entitled_profiles
    (id, user_id, tier, status, addons, daily_usage_count, last_reset_date, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.UserID, string(p.Tier), string(p.Status), addons,
		p.DailyUsageCount, string(p.LastResetDate), p.Version,
		p.CreatedAt.UTC().Format(time.RFC3339Nano), p.UpdatedAt.UTC().Format(time.RFC3339Nano),
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
	var (
		idStr, tierStr, statusStr, addonsStr string
		lastReset, createdAt, updatedAt      string
		count, version                       int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, tier, status, addons, daily_usage_count, last_reset_date, version, created_at, updated_at
FROM entitled_profiles
WHERE user_id = ?`, userID,
	).Scan(&idStr, &tierStr, &statusStr, &addonsStr, &count, &lastReset, &version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entitled.ErrProfileNotFound
		}
		return nil, err
	}

	pid, err := id.ParseProfileID(idStr)
	if err != nil {
		return nil, err
	}
	addons, err := decodeAddons(addonsStr)
	if err != nil {
		return nil, err
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &profile.Profile{
		Entity:          types.Entity{CreatedAt: created, UpdatedAt: updated},
		ID:              pid,
		UserID:          userID,
		Tier:            tier.Code(tierStr),
		Status:          profile.Status(statusStr),
		Addons:          addons,
		DailyUsageCount: count,
		LastResetDate:   types.Date(lastReset),
		Version:         version,
	}, nil
}

func (s *Store) UpdateProfile(ctx context.Context, p *profile.Profile) error {
	addons, err := encodeAddons(p.Addons)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
UPDATE entitled_profiles
SET tier = ?, status = ?, addons = ?, daily_usage_count = ?, last_reset_date = ?,
    version = version + 1, updated_at = ?
WHERE user_id = ? AND version = ?`,
		string(p.Tier), string(p.Status), addons, p.DailyUsageCount, string(p.LastResetDate),
		now.Format(time.RFC3339Nano), p.UserID, p.Version,
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
			`SELECT COUNT(*) FROM entitled_profiles WHERE user_id = ?`, p.UserID,
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
	_, err := s.db.ExecContext(ctx, `
INSERT INTO entitled_usage_log (id, user_id, action, detail, day, ts)
VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.UserID, e.Action, e.Detail, string(e.Day),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *Store) QueryUsage(ctx context.Context, userID string, opts usage.QueryOpts) ([]*usage.LogEntry, error) {
	var b strings.Builder
	b.WriteString(`
SELECT id, user_id, action, detail, day, ts
FROM entitled_usage_log
WHERE user_id = ?`)
	args := []interface{}{userID}

	if opts.From != "" {
		b.WriteString(" AND day >= ?")
		args = append(args, string(opts.From))
	}
	if opts.To != "" {
		b.WriteString(" AND day <= ?")
		args = append(args, string(opts.To))
	}
	if opts.Action != "" {
		b.WriteString(" AND action = ?")
		args = append(args, opts.Action)
	}
	b.WriteString(" ORDER BY ts ASC")
	if opts.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		if opts.Limit <= 0 {
			b.WriteString(" LIMIT -1")
		}
		b.WriteString(" OFFSET ?")
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*usage.LogEntry
	for rows.Next() {
		var idStr, uid, action, detail, day, ts string
		if err := rows.Scan(&idStr, &uid, &action, &detail, &day, &ts); err != nil {
			return nil, err
		}
		eid, err := id.ParseUsageLogID(idStr)
		if err != nil {
			return nil, err
		}
		at, err := parseTime(ts)
		if err != nil {
			return nil, err
		}
		result = append(result, &usage.LogEntry{
			ID:        eid,
			UserID:    uid,
			Action:    action,
			Detail:    detail,
			Day:       types.Date(day),
			Timestamp: at,
		})
	}
	return result, rows.Err()
}

func (s *Store) CountUsage(ctx context.Context, userID string, day types.Date) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entitled_usage_log WHERE user_id = ? AND day = ?`,
		userID, string(day),
	).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) PurgeUsage(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM entitled_usage_log WHERE ts < ?`,
		before.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ==================== Helpers ====================

func encodeAddons(addons []tier.AddonID) (string, error) {
	if len(addons) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(addons)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeAddons(s string) ([]tier.AddonID, error) {
	if s == "" || s == "[]" {
		return nil, nil
	}
	var addons []tier.AddonID
	if err := json.Unmarshal([]byte(s), &addons); err != nil {
		return nil, err
	}
	return addons, nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
