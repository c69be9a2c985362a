package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxIdleEntries bounds how many per-key buckets are kept before idle ones
// are swept.
const maxIdleEntries = 10000

// MemoryLimiter keeps one token bucket per key in process memory. Used when
// no Redis is configured.
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

// NewMemoryLimiter allows limit calls per key per window, refilling evenly.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.limiters[key]
	if !ok {
		if len(m.limiters) >= maxIdleEntries {
			m.sweep()
		}
		l = rate.NewLimiter(m.every, m.burst)
		m.limiters[key] = l
	}
	return l.Allow(), nil
}

// sweep drops buckets that have refilled completely; they carry no state.
func (m *MemoryLimiter) sweep() {
	for k, l := range m.limiters {
		if l.Tokens() >= float64(m.burst) {
			delete(m.limiters, k)
		}
	}
}

func (m *MemoryLimiter) Close() error {
	return nil
}
