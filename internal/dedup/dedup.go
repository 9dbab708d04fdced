// Package dedup tracks recently seen idempotency keys so replayed
// webhook deliveries can be short-circuited.
package dedup

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a marked key suppresses replays.
const DefaultTTL = 24 * time.Hour

// Store records idempotency keys. Seen never marks: callers mark a key
// only after the guarded work has fully succeeded, so a failed attempt
// stays retryable.
type Store interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// Memory is an in-process Store with TTL expiry.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *Memory) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep()
	expiry, ok := m.entries[key]
	return ok && m.now().Before(expiry), nil
}

func (m *Memory) Mark(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = m.now().Add(m.ttl)
	return nil
}

// sweep drops expired entries. Called with mu held.
func (m *Memory) sweep() {
	now := m.now()
	for key, expiry := range m.entries {
		if !now.Before(expiry) {
			delete(m.entries, key)
		}
	}
}
