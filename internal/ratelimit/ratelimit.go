// Package ratelimit provides a per-key token-bucket limiter for the
// webhook endpoints.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Keyed hands out one token bucket per key (typically the caller's IP).
// Idle buckets are evicted after an hour so the map does not grow
// without bound.
type Keyed struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const idleEviction = time.Hour

// NewKeyed allows ratePerMinute requests per key per minute with the
// given burst.
func NewKeyed(ratePerMinute, burst int) *Keyed {
	if ratePerMinute <= 0 {
		ratePerMinute = 60
	}
	if burst <= 0 {
		burst = ratePerMinute
	}
	return &Keyed{
		limit:    rate.Limit(float64(ratePerMinute) / 60.0),
		burst:    burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Allow reports whether the caller identified by key may proceed.
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	v, ok := k.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.visitors[key] = v
		k.evict(now)
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

// evict drops buckets idle past the eviction window. Called with mu held.
func (k *Keyed) evict(now time.Time) {
	for key, v := range k.visitors {
		if now.Sub(v.lastSeen) > idleEviction {
			delete(k.visitors, key)
		}
	}
}
