// Package store handles database connections, schema migrations, and data
// operations using SQLite. It holds the moderation lists the admission
// pipeline reads (bans, allowlist, maintenance flag), the persisted session
// statistics, and the security-event audit trail.
package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/warden-ac/warden/player"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Store manages the SQLite database connection.
type Store struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters,
// and runs migrations.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// IsBanned reports whether the name is on the ban list, along with the
// recorded reason.
func (s *Store) IsBanned(name string) (bool, string) {
	var reason string
	err := s.db.QueryRow(`SELECT reason FROM bans WHERE name = ? COLLATE NOCASE`, name).Scan(&reason)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ""
	}
	if err != nil {
		// A read failure must not turn into a rejection; treat as not banned.
		log.Error().Err(err).Str("name", name).Msg("Ban list read failed")
		return false, ""
	}
	return true, reason
}

// Ban adds a name to the ban list, replacing any prior reason.
func (s *Store) Ban(name, reason string) error {
	_, err := s.db.Exec(`
	INSERT INTO bans (name, reason, added_at) VALUES (?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET reason = excluded.reason`, name, reason, time.Now())
	return err
}

// Unban removes a name from the ban list.
func (s *Store) Unban(name string) error {
	_, err := s.db.Exec(`DELETE FROM bans WHERE name = ? COLLATE NOCASE`, name)
	return err
}

// IsOnAllowlist reports whether the name may join during maintenance.
func (s *Store) IsOnAllowlist(name string) bool {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM allowlist WHERE name = ? COLLATE NOCASE`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("Allowlist read failed")
		return false
	}
	return true
}

// Allow adds a name to the maintenance allowlist.
func (s *Store) Allow(name string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO allowlist (name, added_at) VALUES (?, ?)`, name, time.Now())
	return err
}

// Disallow removes a name from the maintenance allowlist.
func (s *Store) Disallow(name string) error {
	_, err := s.db.Exec(`DELETE FROM allowlist WHERE name = ? COLLATE NOCASE`, name)
	return err
}

// Maintenance reports whether maintenance mode is set.
func (s *Store) Maintenance() bool {
	var v string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = 'maintenance'`).Scan(&v)
	if err != nil {
		return false
	}
	return v == "1"
}

// SetMaintenance toggles maintenance mode.
func (s *Store) SetMaintenance(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	_, err := s.db.Exec(`
	INSERT INTO kv (key, value) VALUES ('maintenance', ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`, v)
	return err
}

// UpsertStat persists one session stat. Elapsed time is stored in
// milliseconds.
func (s *Store) UpsertStat(stat player.Stat) error {
	_, err := s.db.Exec(`
	INSERT INTO session_stats (key, name, join_count, total_elapsed_ms, first_joined, last_seen)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		name = excluded.name,
		join_count = excluded.join_count,
		total_elapsed_ms = excluded.total_elapsed_ms,
		last_seen = excluded.last_seen`,
		stat.Key, stat.Name, stat.JoinCount, stat.TotalElapsed.Milliseconds(),
		stat.FirstJoined, stat.LastSeen)
	return err
}

// LoadStats returns every persisted session stat, used to seed the tracker
// at startup.
func (s *Store) LoadStats() ([]player.Stat, error) {
	rows, err := s.db.Query(`SELECT key, name, join_count, total_elapsed_ms, first_joined, last_seen FROM session_stats`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []player.Stat
	for rows.Next() {
		var st player.Stat
		var elapsedMS int64
		if err := rows.Scan(&st.Key, &st.Name, &st.JoinCount, &elapsedMS, &st.FirstJoined, &st.LastSeen); err != nil {
			return nil, err
		}
		st.TotalElapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, st)
	}
	return out, rows.Err()
}

// LogSecurityEvent appends one audit record. Failures are logged and
// swallowed; the audit trail never blocks a moderation decision.
func (s *Store) LogSecurityEvent(kind, name, details, severity string) {
	_, err := s.db.Exec(`
	INSERT INTO security_events (kind, name, details, severity, created_at)
	VALUES (?, ?, ?, ?, ?)`, kind, name, details, severity, time.Now())
	if err != nil {
		log.Error().Err(err).Str("kind", kind).Str("name", name).Msg("Security event write failed")
	}
}
