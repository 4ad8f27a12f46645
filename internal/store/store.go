// Package store persists batch operations, their documents, rollback
// snapshots, and the documents the pipeline produces, in a single
// SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("store: not found")

type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens a SQLite database at path with WAL mode,
// busy timeout of 5 seconds, and foreign keys enabled. It creates
// all tables if they do not already exist.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS batch_operations (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id              INTEGER NOT NULL DEFAULT 0,
			name                 TEXT NOT NULL DEFAULT '',
			total_files          INTEGER NOT NULL,
			pipeline             TEXT NOT NULL DEFAULT 'primary',
			auto_rollback        INTEGER NOT NULL DEFAULT 0,
			max_retries          INTEGER NOT NULL DEFAULT 3,
			status               TEXT NOT NULL DEFAULT 'pending',
			files_processed      INTEGER NOT NULL DEFAULT 0,
			files_succeeded      INTEGER NOT NULL DEFAULT 0,
			files_failed         INTEGER NOT NULL DEFAULT 0,
			current_index        INTEGER NOT NULL DEFAULT 0,
			started_at           TEXT NOT NULL DEFAULT '',
			completed_at         TEXT NOT NULL DEFAULT '',
			estimated_completion TEXT NOT NULL DEFAULT '',
			total_processing_ms  INTEGER NOT NULL DEFAULT 0,
			can_rollback         INTEGER NOT NULL DEFAULT 0,
			snapshot_id          TEXT NOT NULL DEFAULT '',
			rollback_reason      TEXT NOT NULL DEFAULT '',
			error_message        TEXT NOT NULL DEFAULT '',
			log_json             TEXT NOT NULL DEFAULT '[]',
			stats_json           TEXT NOT NULL DEFAULT '{}',
			created_at           TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS batch_documents (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_id       INTEGER NOT NULL REFERENCES batch_operations(id) ON DELETE CASCADE,
			document_id    INTEGER NOT NULL DEFAULT 0,
			filename       TEXT NOT NULL,
			size           INTEGER NOT NULL DEFAULT 0,
			mime_type      TEXT NOT NULL DEFAULT '',
			position       INTEGER NOT NULL,
			status         TEXT NOT NULL DEFAULT 'pending',
			retry_count    INTEGER NOT NULL DEFAULT 0,
			max_retries    INTEGER NOT NULL DEFAULT 3,
			confidence     REAL NOT NULL DEFAULT 0,
			category       TEXT NOT NULL DEFAULT '',
			processing_ms  INTEGER NOT NULL DEFAULT 0,
			error_message  TEXT NOT NULL DEFAULT '',
			original_path  TEXT NOT NULL DEFAULT '',
			backup_path    TEXT NOT NULL DEFAULT '',
			snapshot_state TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS rollback_snapshots (
			id                 TEXT PRIMARY KEY,
			batch_id           INTEGER NOT NULL UNIQUE REFERENCES batch_operations(id) ON DELETE CASCADE,
			snapshot_type      TEXT NOT NULL DEFAULT 'mixed',
			paths_json         TEXT NOT NULL DEFAULT '{}',
			db_state_json      TEXT NOT NULL DEFAULT '{}',
			auto_cleanup       INTEGER NOT NULL DEFAULT 1,
			cleanup_after_days INTEGER NOT NULL DEFAULT 30,
			expires_at         TEXT NOT NULL,
			created_at         TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			filename     TEXT NOT NULL,
			stored_path  TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL UNIQUE,
			size         INTEGER NOT NULL DEFAULT 0,
			mime_type    TEXT NOT NULL DEFAULT '',
			category     TEXT NOT NULL DEFAULT '',
			confidence   REAL NOT NULL DEFAULT 0,
			batch_id     INTEGER NOT NULL DEFAULT 0,
			created_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batch_documents_batch ON batch_documents(batch_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_batch_operations_status ON batch_operations(status)`,
	}
	for _, ddl := range tables {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: create table: %w", err)
		}
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}
