// Package storage provides the SQLite persistence layer: the append-only
// conversation log (turns, thoughts, moods) and character-state snapshots.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle shared by the log and snapshot stores.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path and applies
// the schema. WAL mode keeps readers from blocking the single writer.
func Open(path string, logger *slog.Logger) (*DB, error) {
	dsn := path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent appends.
	db.SetMaxOpenConns(1)

	s := &DB{db: db, logger: logger}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DB) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_conversations_role ON conversations(role);

CREATE TABLE IF NOT EXISTS thoughts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	content    TEXT NOT NULL,
	importance INTEGER NOT NULL DEFAULT 5,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_thoughts_created ON thoughts(created_at DESC);

CREATE TABLE IF NOT EXISTS emotions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	mood       TEXT NOT NULL,
	intensity  REAL NOT NULL DEFAULT 1.0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_emotions_created ON emotions(created_at DESC);

CREATE TABLE IF NOT EXISTS character_state (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	state_json TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_character_state_created ON character_state(created_at DESC);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("storage: apply schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *DB) Close() error {
	return s.db.Close()
}
