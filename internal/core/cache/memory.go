package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is the default in-process cache backend: a TTL map guarded
// by a read-write mutex. Expired entries are evicted lazily on read,
// or in bulk by Sweep.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// Clock overrides the time source for tests.
	Clock func() time.Time
}

// NewMemory returns an empty in-process backend.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Get returns the value stored under key. An entry whose TTL has
// elapsed is a miss and is evicted on the spot.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m == nil {
		return nil, false, nil
	}

	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !m.now().Before(entry.expiresAt) {
		// Re-check under the write lock: a concurrent Set may have
		// refreshed the entry since the read.
		m.mu.Lock()
		if current, ok := m.entries[key]; ok && !m.now().Before(current.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set stores value under key for ttl. A non-positive ttl stores
// nothing.
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m == nil || key == "" || ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries == nil {
		m.entries = make(map[string]memoryEntry)
	}
	m.entries[key] = memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

// Sweep evicts every expired entry and reports how many it removed.
func (m *Memory) Sweep(ctx context.Context) (int, error) {
	if m == nil {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Clear removes every entry whose key starts with prefix; an empty
// prefix removes everything.
func (m *Memory) Clear(ctx context.Context, prefix string) (int, error) {
	if m == nil {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prefix == "" {
		removed := len(m.entries)
		m.entries = make(map[string]memoryEntry)
		return removed, nil
	}

	removed := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Stats counts live and expired entries.
func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	if m == nil {
		return Stats{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	stats := Stats{}
	for _, entry := range m.entries {
		if now.Before(entry.expiresAt) {
			stats.Entries++
		} else {
			stats.Expired++
		}
	}
	return stats, nil
}

// Len reports the number of stored entries, expired or not.
func (m *Memory) Len() int {
	if m == nil {
		return 0
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

func (m *Memory) now() time.Time {
	if m != nil && m.Clock != nil {
		return m.Clock()
	}
	return time.Now().UTC()
}
