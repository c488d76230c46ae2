// Package index provides the SQLite-backed block index: a queryable
// snapshot of every block in the graph, used for change detection,
// block-by-ID lookup, and property queries.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS blocks (
	id         TEXT PRIMARY KEY,
	page       TEXT NOT NULL,
	ordinal    INTEGER NOT NULL,
	indent     INTEGER NOT NULL DEFAULT 0,
	marker     TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	properties TEXT NOT NULL DEFAULT '{}',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(page, ordinal)
);

CREATE INDEX IF NOT EXISTS idx_blocks_page ON blocks(page);

CREATE TABLE IF NOT EXISTS pages (
	path     TEXT PRIMARY KEY,
	checksum TEXT NOT NULL DEFAULT ''
);
`

// DB wraps a sql.DB with block index operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
