// Package storage provides the central SQLite database for EchoClaw.
// A single echoclaw.db file holds the persona profile and the runtime
// allow-list. The whatsmeow session tables (prefixed whatsmeow_) live in the
// same file when the WhatsApp channel is pointed at it.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.
)

// DriverName is the database/sql driver used for every EchoClaw database.
const DriverName = "sqlite3"

// schema is the DDL executed on every startup (idempotent via IF NOT EXISTS).
const schema = `
-- Owner style samples, oldest first by id.
CREATE TABLE IF NOT EXISTS persona_samples (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    content TEXT NOT NULL
);

-- Owner message history, oldest first by id.
CREATE TABLE IF NOT EXISTS persona_history (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at TEXT NOT NULL
);

-- Chats allowed while group restriction is on.
CREATE TABLE IF NOT EXISTS allowed_groups (
    chat_id  TEXT PRIMARY KEY,
    added_by TEXT DEFAULT '',
    added_at TEXT NOT NULL
);
`

// DSN builds the connection string for path, shared with whatsmeow's sqlstore.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
}

// Open opens (or creates) the database at the given path, enables WAL mode
// and creates all tables.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		path = "./data/echoclaw.db"
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %q: %w", dir, err)
		}
	}

	db, err := sql.Open(DriverName, DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}

	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases alive across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}
