package store

import (
	"database/sql"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists namespaces in a single-table SQLite database.
// modernc.org/sqlite is a pure-Go driver, so the binary stays CGO-free.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// kv table exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite database")
	}

	// A single writer at a time keeps the eventually-consistent contract
	// simple; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			namespace TEXT PRIMARY KEY,
			blob BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create kv table")
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the blob stored under namespace, or (nil, nil) if absent.
func (s *SQLiteStore) Get(namespace string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT blob FROM kv WHERE namespace = ?`, namespace).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read namespace %q", namespace)
	}
	return blob, nil
}

// Set replaces the blob stored under namespace.
func (s *SQLiteStore) Set(namespace string, blob []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (namespace, blob, updated_at) VALUES (?, ?, strftime('%s','now'))
		ON CONFLICT (namespace) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at
	`, namespace, blob)
	return errors.Wrapf(err, "failed to write namespace %q", namespace)
}

// Remove deletes the namespace.
func (s *SQLiteStore) Remove(namespace string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE namespace = ?`, namespace)
	return errors.Wrapf(err, "failed to remove namespace %q", namespace)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
