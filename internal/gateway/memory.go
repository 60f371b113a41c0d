package gateway

import (
	"context"
	"sort"
	"sync"
)

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func (c *memoryCache) Put(_ context.Context, key string, entry Entry) error {
	body := make([]byte, len(entry.Body))
	copy(body, entry.Body)
	entry.Body = body
	entry.Header = entry.Header.Clone()

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Match(_ context.Context, key string) (Entry, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	return entry, ok, nil
}

func (c *memoryCache) Keys(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

type memoryStorage struct {
	mu     sync.RWMutex
	order  []string
	caches map[string]*memoryCache
}

// NewMemoryStorage keeps caches for the lifetime of the process.
func NewMemoryStorage() CacheStorage {
	return &memoryStorage{caches: make(map[string]*memoryCache)}
}

func (s *memoryStorage) Open(_ context.Context, name string) (Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.caches[name]; ok {
		return c, nil
	}
	c := &memoryCache{entries: make(map[string]Entry)}
	s.caches[name] = c
	s.order = append(s.order, name)
	return c, nil
}

func (s *memoryStorage) Has(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	_, ok := s.caches[name]
	s.mu.RUnlock()
	return ok, nil
}

func (s *memoryStorage) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

func (s *memoryStorage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.caches[name]; !ok {
		return false, nil
	}
	delete(s.caches, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *memoryStorage) Match(ctx context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	caches := make([]*memoryCache, 0, len(s.order))
	for _, name := range s.order {
		caches = append(caches, s.caches[name])
	}
	s.mu.RUnlock()

	for _, c := range caches {
		if entry, ok, _ := c.Match(ctx, key); ok {
			return entry, true, nil
		}
	}
	return Entry{}, false, nil
}
