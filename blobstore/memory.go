package blobstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// MemoryStore keeps blobs in a map. It counts the calls it serves so tests
// can check how often a cache in front of it reaches the store.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	gets, puts, deletes, lists atomic.Int64
}

// MemoryStats counts the calls served by a MemoryStore.
type MemoryStats struct {
	Gets, Puts, Deletes, Lists int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Get returns a copy of the blob.
func (m *MemoryStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.gets.Add(1)
	m.mu.RLock()
	data, ok := m.blobs[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return slices.Clone(data), nil
}

// Put stores a copy of data.
func (m *MemoryStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.puts.Add(1)
	m.mu.Lock()
	m.blobs[name] = slices.Clone(data)
	m.mu.Unlock()
	return nil
}

// Delete removes a blob.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.deletes.Add(1)
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()
	return nil
}

// List returns the sorted names starting with prefix.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.lists.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Len returns the number of blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// Stats returns the calls served so far.
func (m *MemoryStore) Stats() MemoryStats {
	return MemoryStats{
		Gets:    m.gets.Load(),
		Puts:    m.puts.Load(),
		Deletes: m.deletes.Load(),
		Lists:   m.lists.Load(),
	}
}
