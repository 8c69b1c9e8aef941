// Package storage implements the SQLite-based persistence layer. Aggregates
// are stored as one JSON blob per row beside the columns the engine indexes
// on; the two timer queues are plain rows driven by status transitions.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Config holds SQLite options.
type Config struct {
	Path        string
	JournalMode string // WAL, DELETE, TRUNCATE
	Synchronous string // OFF, NORMAL, FULL
	BusyTimeout int    // milliseconds
}

// DefaultConfig returns the default SQLite configuration.
func DefaultConfig(dataDir string) Config {
	return Config{
		Path:        filepath.Join(dataDir, "vigil.db"),
		JournalMode: "WAL",
		Synchronous: "NORMAL",
		BusyTimeout: 5000,
	}
}

// DB wraps the shared SQLite connection.
type DB struct {
	conn *sql.DB
}

// New opens the database, applies pragmas and initializes the schema.
func New(config Config) (*DB, error) {
	if dir := filepath.Dir(config.Path); dir != "." && config.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=%s&_synchronous=%s&_busy_timeout=%d",
		config.Path, config.JournalMode, config.Synchronous, config.BusyTimeout)

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY churn under concurrent receivers.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// NewMemory opens a private in-memory database, used by tests.
func NewMemory() (*DB, error) {
	return New(Config{Path: ":memory:", JournalMode: "MEMORY", Synchronous: "OFF", BusyTimeout: 1000})
}

// Close releases the connection.
func (db *DB) Close() error { return db.conn.Close() }

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		status TEXT NOT NULL,
		severity TEXT NOT NULL,
		source TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_fingerprint ON alerts(fingerprint);

	CREATE TABLE IF NOT EXISTS alert_groups (
		id TEXT PRIMARY KEY,
		grouping_key TEXT NOT NULL,
		data TEXT NOT NULL,
		last_added_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alert_groups_key ON alert_groups(grouping_key);

	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS escalation_policies (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS teams (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		alert_id TEXT NOT NULL,
		channel TEXT NOT NULL,
		target TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		next_attempt_at TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_pending
		ON notifications(status, next_attempt_at);

	CREATE TABLE IF NOT EXISTS escalation_steps (
		id TEXT PRIMARY KEY,
		alert_id TEXT NOT NULL,
		policy_id TEXT NOT NULL,
		step_order INTEGER NOT NULL,
		repetition INTEGER NOT NULL DEFAULT 0,
		fires_at TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending'
	);
	CREATE INDEX IF NOT EXISTS idx_escalation_steps_pending
		ON escalation_steps(status, fires_at);

	CREATE TABLE IF NOT EXISTS noise_scores (
		fingerprint TEXT PRIMARY KEY,
		total_fires INTEGER NOT NULL DEFAULT 0,
		dismissed_count INTEGER NOT NULL DEFAULT 0,
		acted_on_count INTEGER NOT NULL DEFAULT 0,
		avg_time_to_ack_secs INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		data TEXT NOT NULL,
		occurred_at TEXT NOT NULL
	);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// Timestamps are stored as RFC-3339 UTC strings. The fractional part is
// fixed-width so string comparison in the (status, fires_at) and
// (status, next_attempt_at) indexes matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
