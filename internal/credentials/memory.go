// ABOUTME: In-memory credential store for tests and ephemeral runs
// ABOUTME: Mirrors FileStore semantics without touching disk

package credentials

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in memory
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Credential
	deletes int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Credential)}
}

func (m *MemoryStore) Load(_ context.Context, serverURL string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.entries[serverURL]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) Save(_ context.Context, cred *Credential) error {
	stamp(cred, time.Now)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[cred.ServerURL] = *cred
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, serverURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, serverURL)
	m.deletes++
	return nil
}

// Deletes returns how many times Delete was called.
func (m *MemoryStore) Deletes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}
