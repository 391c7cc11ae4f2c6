package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // SQLite driver
)

const createTableQuery = `
	CREATE TABLE IF NOT EXISTS request_cache (
		cache_key TEXT PRIMARY KEY,
		cache_value BLOB NOT NULL
	);
`

// SQLiteCache implements Persister with a single SQLite database file
type SQLiteCache struct {
	path string
	db   *sql.DB
}

// NewSQLite opens (or creates) the database at path
func NewSQLite(path string) (*SQLiteCache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite cache at %q: %w", path, err)
	}
	// Limit SQLite to a single open connection to avoid "database is locked" errors
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}

	return &SQLiteCache{path: path, db: db}, nil
}

// Location returns the database file path
func (s *SQLiteCache) Location() string {
	return s.path
}

// Load reads every row, treating any problem as an empty cache
func (s *SQLiteCache) Load() Store {
	store := Store{}

	rows, err := s.db.Query(`SELECT cache_key, cache_value FROM request_cache`)
	if err != nil {
		logrus.Debugf("Ignoring unreadable SQLite cache %s: %v", s.path, err)
		return Store{}
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			logrus.Debugf("Ignoring malformed SQLite cache %s: %v", s.path, err)
			return Store{}
		}
		store[key] = value
	}
	if err := rows.Err(); err != nil {
		logrus.Debugf("Ignoring malformed SQLite cache %s: %v", s.path, err)
		return Store{}
	}
	return store
}

// Persist replaces all rows with the content of store in one transaction
func (s *SQLiteCache) Persist(store Store) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin cache transaction: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM request_cache`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to clear cache table: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO request_cache (cache_key, cache_value) VALUES (?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare cache insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for key, value := range store {
		if _, err := stmt.Exec(key, []byte(value)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to write cache entry %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache transaction: %w", err)
	}
	return nil
}

// Close releases the database handle
func (s *SQLiteCache) Close() error {
	return s.db.Close()
}
