package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// Conservative pool settings for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaDaySchedules = `
CREATE TABLE IF NOT EXISTS day_schedules (
    day TEXT PRIMARY KEY,
    first_class_hour INTEGER,
    offset_hours INTEGER NOT NULL,
    final_hour INTEGER NOT NULL,
    final_minute INTEGER NOT NULL,
    user_override BOOLEAN NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaPendingAlarm = `
CREATE TABLE IF NOT EXISTS pending_alarm (
    row_id INTEGER PRIMARY KEY CHECK (row_id = 1),
    reg_id TEXT NOT NULL,
    fire_at TIMESTAMP NOT NULL,
    day TEXT NOT NULL,
    acked BOOLEAN NOT NULL
);
`

const schemaAlarmEvents = `
CREATE TABLE IF NOT EXISTS alarm_events (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    message TEXT NOT NULL,
    meta TEXT
);
`

const schemaEngineSettings = `
CREATE TABLE IF NOT EXISTS engine_settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		// In case of panic, rollback to avoid leaving an open transaction
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaDaySchedules,
		schemaPendingAlarm,
		schemaAlarmEvents,
		schemaEngineSettings,
		schemaUsers,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
