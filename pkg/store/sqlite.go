package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv_cache (
    key       TEXT PRIMARY KEY,
    value     BLOB NOT NULL,
    stored_at INTEGER NOT NULL
);
`

// SQLite is the default Store backend: a single local database file.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (or creates) the cache database at path. The parent
// directory is created if needed.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	return &SQLite{db: db, path: path}, nil
}

// Initialize creates the kv_cache table if it does not exist.
func (s *SQLite) Initialize(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, key string) (Entry, bool, error) {
	var value []byte
	var storedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, stored_at FROM kv_cache WHERE key = ?`, key,
	).Scan(&value, &storedAt)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Value: value, StoredAt: time.Unix(storedAt, 0)}, true, nil
}

func (s *SQLite) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_cache (key, value, stored_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			stored_at = excluded.stored_at
	`, key, value, time.Now().Unix())
	return err
}

func (s *SQLite) Invalidate(ctx context.Context, prefix string) error {
	// substr avoids LIKE wildcard surprises in keys ("_" is common in paths).
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_cache WHERE substr(key, 1, ?) = ?`, len(prefix), prefix)
	return err
}

// Close closes the database connection.
func (s *SQLite) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }

var _ Store = (*SQLite)(nil)
