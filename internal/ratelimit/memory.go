package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepThreshold is the number of tracked keys above which expired windows
// are pruned on the next Allow call.
const sweepThreshold = 4096

type window struct {
	count int
	reset time.Time
}

// MemoryLimiter keeps windows in process memory. Counts are not shared
// between instances.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string]*window
}

// Compile-time interface guard.
var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter creates a MemoryLimiter. Zero values select the defaults.
func NewMemoryLimiter(limit int, win time.Duration, now func() time.Time) *MemoryLimiter {
	limit, win, now = normalize(limit, win, now)
	return &MemoryLimiter{
		limit:   limit,
		window:  win,
		now:     now,
		windows: make(map[string]*window),
	}
}

// Allow counts one request against key's current window.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	k := keyPrefix + key
	w, ok := m.windows[k]
	if !ok || !now.Before(w.reset) {
		if len(m.windows) >= sweepThreshold {
			m.sweep(now)
		}
		w = &window{count: 1, reset: now.Add(m.window)}
		m.windows[k] = w
		return Decision{Allowed: true, Limit: m.limit, Remaining: m.limit - 1, Reset: w.reset, RetryIn: m.window}, nil
	}

	if w.count >= m.limit {
		return Decision{Allowed: false, Limit: m.limit, Remaining: 0, Reset: w.reset, RetryIn: w.reset.Sub(now)}, nil
	}

	w.count++
	return Decision{Allowed: true, Limit: m.limit, Remaining: m.limit - w.count, Reset: w.reset, RetryIn: w.reset.Sub(now)}, nil
}

// Reset forgets key's window.
func (m *MemoryLimiter) Reset(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.windows, keyPrefix+key)
}

// sweep must be called with mu held.
func (m *MemoryLimiter) sweep(now time.Time) {
	for k, w := range m.windows {
		if !now.Before(w.reset) {
			delete(m.windows, k)
		}
	}
}
