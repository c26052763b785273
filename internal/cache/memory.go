package cache

import (
	"context"
	"sync"
	"time"

	"github.com/scopeworks/intake/internal/model"
)

// entry is a cached result with its expiry.
type entry struct {
	result    *model.StructuredResult
	expiresAt time.Time
}

// MemoryStore implements Store with a mutex-guarded in-process map. Used by
// default when no cache path is configured, and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	nowFunc func() time.Time // injectable for tests
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		nowFunc: time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (m *MemoryStore) WithNow(now func() time.Time) *MemoryStore {
	m.nowFunc = now
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) (*model.StructuredResult, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || m.nowFunc().After(e.expiresAt) {
		return nil, false, nil
	}
	return e.result, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, result *model.StructuredResult, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{result: result, expiresAt: m.nowFunc().Add(ttl)}
	return nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFunc()
	var n int
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.nowFunc()
	var n int
	for _, e := range m.entries {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
