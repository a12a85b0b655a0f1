// Package storage provides the byte-oriented key/value backends that hold a
// wallet's encoded records.
//
// A Store is the shared resource (a filesystem root, an in-memory map, a
// SQLite database or a Redis server). A Backend is a Store scoped to one
// wallet location. Every variant uses the same location string, the wallet
// directory path, so a wallet keeps its identity across backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Kind selects a backend variant.
type Kind string

// Supported backend kinds.
const (
	KindFS     Kind = "fs"
	KindMem    Kind = "mem"
	KindSQLite Kind = "sqlite"
	KindRedis  Kind = "redis"
)

// Record keys.
const (
	KeyInfo = "info"
	KeyData = "data"
)

const (
	FileMode = 0600 // Owner read/write only
	DirMode  = 0700 // Owner read/write/execute only

	MaxNameLength = 128
)

// Errors
var (
	ErrNotFound       = errors.New("storage: key not found")
	ErrUnknownKind    = errors.New("storage: unknown storage kind")
	ErrInvalidName    = errors.New("storage: invalid wallet name")
	ErrInvalidKey     = errors.New("storage: invalid record key")
	ErrMissingAddress = errors.New("storage: missing backend address")
)

// Backend is key/value byte storage scoped to one wallet location.
// Implementations provide no locking across processes. Read and Write
// reject keys failing ValidateKey with ErrInvalidKey.
type Backend interface {
	// Exists reports whether the wallet location is present. Failures to
	// determine presence report false.
	Exists(ctx context.Context) bool

	// Read returns the bytes stored under key. A missing key returns an
	// error wrapping ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write stores data under key, creating the location when missing.
	Write(ctx context.Context, key string, data []byte) error

	// Delete removes the whole location. Deleting a missing location
	// succeeds.
	Delete(ctx context.Context) error

	// Location returns the wallet location this backend is scoped to.
	Location() string
}

// Store hands out wallet-scoped backends over a shared resource.
type Store interface {
	Backend(location string) Backend
	Kind() Kind
}

// Location returns the wallet location for name under root:
// <root>/.lorena/wallets/<name>.
func Location(root, name string) string {
	return filepath.Join(root, ".lorena", "wallets", name)
}

// ValidateName checks that a wallet name maps to a single path element.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %d characters exceeds maximum of %d", ErrInvalidName, len(name), MaxNameLength)
	}
	if !isPathElement(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ValidateKey checks that a record key maps to a single path element
// inside the wallet location.
func ValidateKey(key string) error {
	if key == "" || len(key) > MaxNameLength || !isPathElement(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func isPathElement(s string) bool {
	return s != "." && s != ".." && !strings.ContainsAny(s, `/\`) && !strings.ContainsRune(s, 0)
}

// Config selects and configures a Store.
type Config struct {
	Kind Kind

	// SQLitePath is the database file for KindSQLite.
	SQLitePath string

	// Redis connection settings for KindRedis.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open builds the Store described by cfg. An empty kind selects KindFS.
// The caller closes the returned Store when it implements io.Closer.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Kind {
	case "", KindFS:
		return NewFSStore(), nil
	case KindMem:
		return NewMemStore(), nil
	case KindSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("%w: sqlite path is required", ErrMissingAddress)
		}
		return OpenSQLite(ctx, cfg.SQLitePath)
	case KindRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("%w: redis address is required", ErrMissingAddress)
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("storage: failed to connect to redis: %w", err)
		}
		return NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// ParseKind parses a kind name, accepting the empty string as KindFS.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindFS, nil
	case KindFS, KindMem, KindSQLite, KindRedis:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}
