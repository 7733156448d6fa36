package store

import (
	"context"
	"sync"
	"time"
)

var timeNow = time.Now

type memoryEntry struct {
	userID    int64
	expiresAt time.Time
}

type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Save(_ context.Context, tokenID string, userID int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := timeNow()
	m.sweep(current)
	m.entries[tokenID] = memoryEntry{userID: userID, expiresAt: current.Add(ttl)}
	return nil
}

// sweep drops expired entries. Callers hold mu.
func (m *MemoryStore) sweep(current time.Time) {
	for id, entry := range m.entries {
		if !current.Before(entry.expiresAt) {
			delete(m.entries, id)
		}
	}
}

func (m *MemoryStore) Exists(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !timeNow().Before(entry.expiresAt) {
		delete(m.entries, tokenID)
		return false, nil
	}
	return true, nil
}

func (m *MemoryStore) Revoke(_ context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, tokenID)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	return nil
}
