// Package history persists a record of completed agent executions in a
// local SQLite database, for the internal inspection endpoint.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id  TEXT NOT NULL,
	protocol    TEXT NOT NULL,
	model       TEXT NOT NULL,
	streamed    INTEGER NOT NULL,
	success     INTEGER NOT NULL,
	finish      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_executions_created_at ON executions(created_at);
`

// Record is one persisted execution.
type Record struct {
	RequestID string        `json:"request_id"`
	Protocol  string        `json:"protocol"`
	Model     string        `json:"model"`
	Streamed  bool          `json:"streamed"`
	Success   bool          `json:"success"`
	Finish    string        `json:"finish_reason"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ms"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store is a SQLite-backed execution log.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path, applying the schema
// and the pragmas that keep concurrent writers off SQLITE_BUSY.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	dsn := "file:" + path + "?cache=shared&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Append inserts one execution record.
func (s *Store) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (request_id, protocol, model, streamed, success, finish, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Protocol, rec.Model, rec.Streamed, rec.Success, rec.Finish, rec.Error,
		rec.Duration.Milliseconds(), rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording execution: %w", err)
	}
	return nil
}

// Recent returns up to limit executions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, protocol, model, streamed, success, finish, error, duration_ms, created_at
		 FROM executions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var durationMS int64
		if err := rows.Scan(&rec.RequestID, &rec.Protocol, &rec.Model, &rec.Streamed, &rec.Success,
			&rec.Finish, &rec.Error, &durationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning execution: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
