package storage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemStore keeps wallets in a two-level map keyed by location, then by
// record key. The location is only a namespace, nothing touches the disk.
// A MemStore may be shared by several wallets.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewMemStore returns an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]map[string][]byte)}
}

// Kind implements Store.
func (s *MemStore) Kind() Kind { return KindMem }

// Backend implements Store.
func (s *MemStore) Backend(location string) Backend {
	return &memBackend{store: s, location: location}
}

// Locations lists the locations currently held, sorted.
func (s *MemStore) Locations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	locs := make([]string, 0, len(s.data))
	for loc := range s.data {
		locs = append(locs, loc)
	}
	sort.Strings(locs)
	return locs
}

type memBackend struct {
	store    *MemStore
	location string
}

func (b *memBackend) Location() string { return b.location }

func (b *memBackend) Exists(ctx context.Context) bool {
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	_, ok := b.store.data[b.location]
	return ok
}

func (b *memBackend) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	data, ok := b.store.data[b.location][key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return bytes.Clone(data), nil
}

func (b *memBackend) Write(ctx context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	records, ok := b.store.data[b.location]
	if !ok {
		records = make(map[string][]byte)
		b.store.data[b.location] = records
	}
	records[key] = bytes.Clone(data)
	return nil
}

func (b *memBackend) Delete(ctx context.Context) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	delete(b.store.data, b.location)
	return nil
}
