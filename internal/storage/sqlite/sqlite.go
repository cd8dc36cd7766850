// Package sqlite implements storage.Backend on top of a single SQLite
// file (or an in-process :memory: database) via the pure-Go
// modernc.org/sqlite driver, so the module works without cgo or an
// external database for local development and fast tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Backend wraps a *sql.DB opened against a SQLite file or :memory:.
type Backend struct {
	db *sql.DB
}

// Open creates (or reuses) the SQLite database at path. Use
// "file::memory:?cache=shared" for an in-process, non-persistent store.
func Open(path string) (*Backend, error) {
	if path != "" && !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("storage/sqlite: create db dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage/sqlite: open db: %w", err)
	}
	// PRAGMAs are per connection (and a :memory: database is per
	// connection too), so the pool is held to one connection that every
	// statement below and every later query shares.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if path != ":memory:" && !strings.Contains(path, ":memory:") {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage/sqlite: apply pragma %q: %w", stmt, err)
		}
	}

	return &Backend{db: db}, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS text_assets (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	content TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT,
	tool_calls TEXT,
	tool_call_id TEXT,
	input_tokens INTEGER,
	output_tokens INTEGER
);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	message_ids TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	name TEXT NOT NULL,
	system_prompt_id TEXT NOT NULL,
	parent_id TEXT REFERENCES agents(id) ON DELETE SET NULL,
	conversation_id TEXT NOT NULL,
	model TEXT NOT NULL,
	model_config TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS agents_parent_id_idx ON agents (parent_id);
CREATE INDEX IF NOT EXISTS agents_name_idx ON agents (name);
CREATE INDEX IF NOT EXISTS agents_created_at_idx ON agents (created_at);
`

// InitSchema creates every table, splitting the schema on ";" and
// executing each statement in turn, mirroring the migration style used
// elsewhere in the corpus for SQLite-backed stores.
func (b *Backend) InitSchema(ctx context.Context) error {
	for _, raw := range strings.Split(schemaSQL, ";") {
		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("storage/sqlite: init schema: %w (statement=%q)", err, stmt)
		}
	}
	return nil
}

func (b *Backend) Close(ctx context.Context) error {
	return b.db.Close()
}
