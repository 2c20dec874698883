// Package taskstore persists the keyed {id, url} records that back the
// async-create generation path: a placeholder row is inserted when a task is
// submitted, and a background worker fills in the result URL once the remote
// call completes. The status resolver polls these rows from a later turn.
package taskstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotFound reports a task id with no record.
var ErrNotFound = errors.New("task record not found")

const schema = `
CREATE TABLE IF NOT EXISTS task_results (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Record is one stored task row. An empty URL means still processing.
type Record struct {
	ID  string
	URL string
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}
	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize task store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// InsertPlaceholder writes a row with an empty URL for a freshly submitted
// task.
func (s *Store) InsertPlaceholder(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO task_results (id, url) VALUES (?, '') ON CONFLICT(id) DO NOTHING", id)
	if err != nil {
		return fmt.Errorf("insert placeholder %s: %w", id, err)
	}
	return nil
}

// SetURL records the final result URL for a task.
func (s *Store) SetURL(ctx context.Context, id, url string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE task_results SET url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", url, id)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches a record by id; ErrNotFound when the row was never written.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var r Record
	err := s.db.QueryRowContext(ctx,
		"SELECT id, url FROM task_results WHERE id = ?", id).Scan(&r.ID, &r.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("query task %s: %w", id, err)
	}
	return r, nil
}
