package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// migrations are applied in order; each entry runs once, tracked by name in
// schema_migrations.
var migrations = []struct {
	version string
	schema  string
}{
	{
		version: "0001_initial",
		schema: `
		CREATE TABLE bans (
			name     TEXT PRIMARY KEY COLLATE NOCASE,
			reason   TEXT NOT NULL DEFAULT '',
			added_at DATETIME NOT NULL
		);
		CREATE TABLE allowlist (
			name     TEXT PRIMARY KEY COLLATE NOCASE,
			added_at DATETIME NOT NULL
		);
		CREATE TABLE session_stats (
			key              TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			join_count       INTEGER NOT NULL DEFAULT 0,
			total_elapsed_ms INTEGER NOT NULL DEFAULT 0,
			first_joined     DATETIME,
			last_seen        DATETIME
		);
		CREATE TABLE kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	},
	{
		version: "0002_security_events",
		schema: `
		CREATE TABLE security_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			kind       TEXT NOT NULL,
			name       TEXT NOT NULL,
			details    TEXT NOT NULL DEFAULT '',
			severity   TEXT NOT NULL DEFAULT 'info',
			created_at DATETIME NOT NULL
		);
		CREATE INDEX idx_security_events_name ON security_events(name);`,
	},
}

// runMigrations applies any migration not yet recorded in schema_migrations.
func runMigrations(db *sql.DB) error {
	const migrationTableSchema = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME
	);`

	if _, err := db.Exec(migrationTableSchema); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow("SELECT 1 FROM schema_migrations WHERE version = ?", m.version).Scan(&exists)
		if err == nil {
			continue // applied
		} else if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check migration status: %w", err)
		}

		log.Info().Str("version", m.version).Msg("Applying database migration...")

		tx, err := db.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(m.schema); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to exec migration %s: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.version, time.Now()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}
