package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

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
    addons            TEXT NOT NULL DEFAULT '[]',
    daily_usage_count INTEGER NOT NULL DEFAULT 0,
    last_reset_date   TEXT NOT NULL DEFAULT '',
    version           INTEGER NOT NULL DEFAULT 1,
    created_at        TEXT NOT NULL,
    updated_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entitled_profiles_tier ON entitled_profiles (tier);
`,
	},
	{
		Name:    "create_entitled_usage_log",
		Version: "20250101000002",
		Up: `
CREATE TABLE IF NOT EXISTS entitled_usage_log (
    id      TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    action  TEXT NOT NULL,
    detail  TEXT NOT NULL DEFAULT '',
    day     TEXT NOT NULL,
    ts      TEXT NOT NULL
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
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
)`

func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, migrationTable); err != nil {
		return fmt.Errorf("entitled/sqlite: create migration table: %w", err)
	}

	for _, m := range migrations {
		var n int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM entitled_migrations WHERE version = ?`, m.Version,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("entitled/sqlite: check migration %s: %w", m.Name, err)
		}
		if n > 0 {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("entitled/sqlite: begin migration %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("entitled/sqlite: apply migration %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entitled_migrations (version, name) VALUES (?, ?)`,
			m.Version, m.Name,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("entitled/sqlite: record migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("entitled/sqlite: commit migration %s: %w", m.Name, err)
		}
	}
	return nil
}
