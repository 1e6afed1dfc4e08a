package tokenstore

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory. Nothing survives the process.
type MemoryStore struct {
	mu      sync.Mutex
	records map[Key]string
}

// Compile-time check to ensure MemoryStore implements TokenStore
var _ TokenStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key]string)}
}

// Location returns a descriptive name for the in-memory slot.
func (m *MemoryStore) Location(key Key) string {
	return "memory:" + string(key)
}

// Read returns the first line of the record.
func (m *MemoryStore) Read(ctx context.Context, key Key) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.records[key]
	if !ok {
		return "", ErrNotFound
	}
	return firstLine(value), nil
}

// Write replaces the record.
func (m *MemoryStore) Write(ctx context.Context, key Key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[key] = value
	return nil
}

// Delete removes the record if present.
func (m *MemoryStore) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, key)
	return nil
}
