package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	content string
	expires time.Time // zero: never
}

// Memory is an in-process ContentStore. Expired entries are dropped on read.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	ttl  time.Duration
	now  func() time.Time
}

// NewMemory creates an in-memory store. A ttl of zero keeps entries forever.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		data: make(map[string]memoryEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get returns the content stored for id.
func (m *Memory) Get(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	entry, ok := m.data[id]
	m.mu.RUnlock()

	if !ok {
		return "", ErrNotFound
	}
	if !entry.expires.IsZero() && !m.now().Before(entry.expires) {
		m.mu.Lock()
		if cur, ok := m.data[id]; ok && cur.expires.Equal(entry.expires) {
			delete(m.data, id)
		}
		m.mu.Unlock()
		return "", ErrNotFound
	}
	return entry.content, nil
}

// Put stores content for id and restarts its TTL.
func (m *Memory) Put(ctx context.Context, id, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entry := memoryEntry{content: content}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}

	m.mu.Lock()
	m.data[id] = entry
	m.mu.Unlock()
	return nil
}

// Delete removes the content for id. Deleting a missing id is not an error.
func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.data, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
