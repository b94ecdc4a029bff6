// Package store persists the durable state of the EFILE core in SQLite:
// the submission reference sequence, the duplicate-digest ledger, the
// submission log, per-attempt audit records, and encrypted retention rows.
//
// All methods are safe for concurrent use. Operations that must be atomic
// with respect to concurrent submitters (sequence allocation, digest
// check-and-record) are serialized through a mutex on top of a SQLite
// transaction, so the invariants hold under both concurrent goroutines and
// process restarts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database holding all durable EFILE state.
type Store struct {
	db *sql.DB

	seqMu    sync.Mutex
	ledgerMu sync.Mutex
}

// Open opens (creating if needed) the database at path and initializes the
// schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS ref_sequence (
	id    INTEGER PRIMARY KEY CHECK (id = 1),
	value INTEGER NOT NULL
);
INSERT OR IGNORE INTO ref_sequence (id, value) VALUES (1, 0);

CREATE TABLE IF NOT EXISTS digest_ledger (
	digest          TEXT PRIMARY KEY,
	ref_id          TEXT NOT NULL,
	first_seen      TIMESTAMP NOT NULL,
	outcome         TEXT NOT NULL DEFAULT 'pending',
	confirmation_id TEXT,
	error_code      TEXT
);

CREATE TABLE IF NOT EXISTS submissions (
	ref_id          TEXT PRIMARY KEY,
	digest          TEXT NOT NULL,
	state           TEXT NOT NULL,
	envelope        BLOB NOT NULL,
	attempt_count   INTEGER NOT NULL DEFAULT 0,
	confirmation_id TEXT,
	error_code      TEXT,
	detail          TEXT,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS attempts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ref_id     TEXT NOT NULL,
	number     INTEGER NOT NULL,
	started_at TIMESTAMP NOT NULL,
	outcome    TEXT NOT NULL,
	backoff_ms INTEGER NOT NULL,
	detail     TEXT
);
CREATE INDEX IF NOT EXISTS idx_attempts_ref ON attempts(ref_id);

CREATE TABLE IF NOT EXISTS retention_records (
	id             TEXT PRIMARY KEY,
	ref_id         TEXT NOT NULL,
	kind           TEXT NOT NULL,
	subject_masked TEXT NOT NULL,
	signed_at      TIMESTAMP NOT NULL,
	purge_after    TIMESTAMP NOT NULL,
	nonce          BLOB NOT NULL,
	payload        BLOB NOT NULL,
	created_at     TIMESTAMP NOT NULL,
	UNIQUE (ref_id, kind)
);
CREATE INDEX IF NOT EXISTS idx_retention_purge ON retention_records(purge_after);
`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}
