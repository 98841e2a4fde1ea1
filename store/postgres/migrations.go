package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one schema step. Steps run in order inside a transaction and
// are recorded in entitled_migrations so re-running Migrate is a no-op.
type migration struct {
	Name    string
	Version string
	Up      string
}

var migrations = []migration{
	{
		Name:    "create_entitled_profiles",
		Version: "20250101000001",
		Up: `
CREATE TABLE IF NOT EXISTS entitled_profiles (
    id                TEXT NOT NULL,
    user_id           TEXT PRIMARY KEY,
    tier              TEXT NOT NULL DEFAULT 'free',
    status            TEXT NOT NULL DEFAULT 'active',
    addons            TEXT[] NOT NULL DEFAULT '{}',
    daily_usage_count BIGINT NOT NULL DEFAULT 0,
    last_reset_date   TEXT NOT NULL DEFAULT '',
    version           BIGINT NOT NULL DEFAULT 1,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_entitled_profiles_tier ON entitled_profiles (tier);
CREATE INDEX IF NOT EXISTS idx_entitled_profiles_status ON entitled_profiles (status);
`,
	},
	{
		Name:    "create_entitled_usage_log",
		Version: "20250101000002",
		Up: `
CREATE TABLE IF NOT EXISTS entitled_usage_log (
    id        TEXT PRIMARY KEY,
    user_id   TEXT NOT NULL,
    action    TEXT NOT NULL,
    detail    TEXT NOT NULL DEFAULT '',
    day       TEXT NOT NULL,
    ts        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entitled_usage_user_day ON entitled_usage_log (user_id, day);
CREATE INDEX IF NOT EXISTS idx_entitled_usage_ts ON entitled_usage_log (ts);
`,
	},
}

const migrationTable = `
CREATE TABLE IF NOT EXISTS entitled_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, migrationTable); err != nil {
		return fmt.Errorf("entitled/postgres: create migration table: %w", err)
	}

	for _, m := range migrations {
		applied, err := migrationApplied(ctx, db, m.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("entitled/postgres: begin migration %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("entitled/postgres: apply migration %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entitled_migrations (version, name) VALUES ($1, $2)`,
			m.Version, m.Name,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("entitled/postgres: record migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("entitled/postgres: commit migration %s: %w", m.Name, err)
		}
	}
	return nil
}

func migrationApplied(ctx context.Context, db *sql.DB, version string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entitled_migrations WHERE version = $1`, version,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("entitled/postgres: check migration %s: %w", version, err)
	}
	return n > 0, nil
}
