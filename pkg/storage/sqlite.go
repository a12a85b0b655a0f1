package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps every wallet's records in one table of a SQLite
// database, keyed by (location, key).
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating when needed) the database at path. The special
// path ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", ErrMissingAddress)
	}

	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open sqlite db: %w", err)
	}

	// one connection keeps ":memory:" databases alive and avoids
	// "database is locked" for single-process use
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: failed to ping sqlite db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS envelopes (
			location TEXT NOT NULL,
			key TEXT NOT NULL,
			data BLOB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (location, key)
		)
	`)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Kind implements Store.
func (s *SQLiteStore) Kind() Kind { return KindSQLite }

// Backend implements Store.
func (s *SQLiteStore) Backend(location string) Backend {
	return &sqliteBackend{db: s.db, location: location}
}

type sqliteBackend struct {
	db       *sql.DB
	location string
}

func (b *sqliteBackend) Location() string { return b.location }

func (b *sqliteBackend) Exists(ctx context.Context) bool {
	var n int
	err := b.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM envelopes WHERE location = ?", b.location).Scan(&n)
	return err == nil && n > 0
}

func (b *sqliteBackend) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	var data []byte
	err := b.db.QueryRowContext(ctx,
		"SELECT data FROM envelopes WHERE location = ? AND key = ?", b.location, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("storage: failed to read %s: %w", key, err)
	}
	return data, nil
}

func (b *sqliteBackend) Write(ctx context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO envelopes (location, key, data) VALUES (?, ?, ?)
		ON CONFLICT (location, key) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP
	`, b.location, key, data)
	if err != nil {
		return fmt.Errorf("storage: failed to write %s: %w", key, err)
	}
	return nil
}

func (b *sqliteBackend) Delete(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, "DELETE FROM envelopes WHERE location = ?", b.location); err != nil {
		return fmt.Errorf("storage: failed to delete wallet: %w", err)
	}
	return nil
}
