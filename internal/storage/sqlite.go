// Package storage provides the SQLite-backed persistence layer: the hearing
// store (single writer of hearing state), the durable credential row, and
// the read-only case directory shim.
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS hearings (
	id              TEXT PRIMARY KEY,
	case_id         TEXT NOT NULL,
	date            TEXT NOT NULL,
	time            TEXT NOT NULL,
	kind            TEXT NOT NULL,
	mode            TEXT NOT NULL,
	location        TEXT NOT NULL DEFAULT '',
	notes           TEXT NOT NULL DEFAULT '',
	meeting_link    TEXT NOT NULL DEFAULT '',
	sync_status     TEXT NOT NULL,
	remote_event_id TEXT NOT NULL DEFAULT '',
	notified        INTEGER NOT NULL DEFAULT 0,
	notified_at     TEXT,
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hearings_case_id ON hearings(case_id);
CREATE INDEX IF NOT EXISTS idx_hearings_date ON hearings(date);

CREATE TABLE IF NOT EXISTS credentials (
	id                  TEXT PRIMARY KEY,
	refresh_token       TEXT NOT NULL,
	access_token        TEXT NOT NULL DEFAULT '',
	access_token_expiry TEXT,
	updated_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cases (
	id     TEXT PRIMARY KEY,
	number TEXT NOT NULL,
	title  TEXT NOT NULL DEFAULT ''
);
`

// DB wraps the SQLite handle shared by the stores in this package.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and ensures
// the schema exists.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc.org/sqlite serializes writers itself; a single connection
	// avoids SQLITE_BUSY under concurrent store access.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{sql: db}, nil
}

// Close closes the underlying database handle.
func (d *DB) Close() error {
	return d.sql.Close()
}
