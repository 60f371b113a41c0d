package storage

import (
	"context"
	"sort"
	"sync"
)

type memoryBackend struct {
	items map[string][]byte
	mutex sync.RWMutex
}

// NewMemory builds an in-memory backend. Contents do not survive the process.
func NewMemory() Backend {
	return &memoryBackend{items: make(map[string][]byte)}
}

func (m *memoryBackend) Put(_ context.Context, key string, value []byte) error {
	buf := make([]byte, len(value))
	copy(buf, value)

	m.mutex.Lock()
	m.items[key] = buf
	m.mutex.Unlock()
	return nil
}

func (m *memoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mutex.RLock()
	value, ok := m.items[key]
	m.mutex.RUnlock()
	if !ok {
		return nil, false, nil
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	return buf, true, nil
}

func (m *memoryBackend) Delete(_ context.Context, key string) error {
	m.mutex.Lock()
	delete(m.items, key)
	m.mutex.Unlock()
	return nil
}

func (m *memoryBackend) Keys(_ context.Context) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memoryBackend) Close() error {
	return nil
}
