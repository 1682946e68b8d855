package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   int64
	expires time.Time
}

// MemoryCounter is a process-local Counter. Now may be replaced in tests.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	Now     func() time.Time
}

// NewMemoryCounter creates an empty MemoryCounter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{entries: make(map[string]memoryEntry), Now: time.Now}
}

func (m *MemoryCounter) live(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return e, false
	}
	if !e.expires.IsZero() && !m.Now().Before(e.expires) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryCounter) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok && ttl > 0 {
		e.expires = m.Now().Add(ttl)
	}
	e.value++
	m.entries[key] = e
	return e.value, nil
}

func (m *MemoryCounter) Decrement(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _ := m.live(key)
	e.value--
	m.entries[key] = e
	return nil
}

func (m *MemoryCounter) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _ := m.live(key)
	return e.value, nil
}

func (m *MemoryCounter) Close() error { return nil }
