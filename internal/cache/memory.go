package cache

import (
	"context"
	"sync"
)

// MemoryCache mirrors ValkeyClient in process.
type MemoryCache struct {
	mu         sync.Mutex
	generation int64
	entries    map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func (m *MemoryCache) GetReport(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.entries[reportKey(m.generation, name)]
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryCache) Generation(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation, nil
}

// SetReport drops writes for a superseded generation.
func (m *MemoryCache) SetReport(_ context.Context, gen int64, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return nil
	}
	m.entries[reportKey(m.generation, name)] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryCache) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.entries = make(map[string][]byte)
	return nil
}
