package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FSStore keeps each wallet in its own directory with one file per key.
type FSStore struct{}

// NewFSStore returns a filesystem Store.
func NewFSStore() *FSStore {
	return &FSStore{}
}

// Kind implements Store.
func (s *FSStore) Kind() Kind { return KindFS }

// Backend implements Store. location is the wallet directory.
func (s *FSStore) Backend(location string) Backend {
	return &fsBackend{dir: location}
}

type fsBackend struct {
	dir string
}

func (b *fsBackend) Location() string { return b.dir }

func (b *fsBackend) Exists(ctx context.Context) bool {
	info, err := os.Stat(b.dir)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func (b *fsBackend) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(b.dir, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("storage: failed to read %s: %w", key, err)
	}
	return data, nil
}

func (b *fsBackend) Write(ctx context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := os.MkdirAll(b.dir, DirMode); err != nil {
		return fmt.Errorf("storage: failed to create wallet directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(b.dir, key), data, FileMode); err != nil {
		return fmt.Errorf("storage: failed to write %s: %w", key, err)
	}
	return nil
}

func (b *fsBackend) Delete(ctx context.Context) error {
	if err := os.RemoveAll(b.dir); err != nil {
		return fmt.Errorf("storage: failed to remove wallet directory: %w", err)
	}
	return nil
}
