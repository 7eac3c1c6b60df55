package settings

import (
	"context"
	"sync"
)

// Store holds the current Snapshot. Update replaces the snapshot
// atomically with the result of fn.
type Store interface {
	Get(ctx context.Context) (Snapshot, error)
	Update(ctx context.Context, fn func(Snapshot) Snapshot) (Snapshot, error)
}

// MemoryStore keeps the snapshot in process.
type MemoryStore struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

var _ Store = &MemoryStore{}

func NewMemoryStore(initial Snapshot) *MemoryStore {
	return &MemoryStore{snapshot: initial}
}

func (m *MemoryStore) Get(ctx context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snapshot, nil
}

func (m *MemoryStore) Update(ctx context.Context, fn func(Snapshot) Snapshot) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot = fn(m.snapshot)

	return m.snapshot, nil
}
