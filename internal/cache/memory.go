package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-process cache tier: a TTL map keyed by content hash,
// constructed once per process and injected into the extractor. Last writer
// wins on a concurrent miss; extraction is idempotent per hash so that is
// acceptable.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, contentHash string) (*Entry, error) {
	m.mu.RLock()
	e, ok := m.entries[contentHash]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if m.now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, contentHash)
		m.mu.Unlock()
		return nil, nil
	}
	out := e.entry
	return &out, nil
}

func (m *Memory) Put(_ context.Context, contentHash string, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.now()
	}
	m.mu.Lock()
	m.entries[contentHash] = memoryEntry{entry: entry, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

// Len reports the number of live entries, expired or not. Test helper.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
