package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
	} {
		if _, err := db.ExecContext(pctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
  id          TEXT PRIMARY KEY,
  collection  TEXT NOT NULL,
  body        JSON NOT NULL,
  created_at  TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS followup_queue (
  id              TEXT PRIMARY KEY,
  application_id  TEXT NOT NULL,
  token           TEXT NOT NULL,
  interaction_id  TEXT,
  user_id         TEXT,
  channel_id      TEXT,
  guild_id        TEXT,
  content         TEXT NOT NULL,
  ephemeral       INTEGER NOT NULL DEFAULT 0,
  status          TEXT NOT NULL,
  attempt         INTEGER NOT NULL DEFAULT 1,
  max_attempts    INTEGER NOT NULL DEFAULT 4,
  created_at      TEXT NOT NULL,
  deliver_at      TEXT NOT NULL,
  started_at      TEXT,
  completed_at    TEXT,
  last_error      TEXT
);`,
		`CREATE INDEX IF NOT EXISTS documents_collection_created_at_idx ON documents(collection, created_at);`,
		`CREATE INDEX IF NOT EXISTS followup_queue_status_deliver_at_idx ON followup_queue(status, deliver_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
