package testutil

import (
	"sync"
	"time"
)

// Epoch is where a Clock starts unless told otherwise.
var Epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

// Clock is a manual time source for cache TTL and rate-limit window tests.
// Pass c.Now wherever a func() time.Time is accepted.
type Clock struct {
	mu      sync.Mutex
	start   time.Time
	elapsed time.Duration
}

// NewClock returns a Clock at start, or at Epoch when start is omitted.
func NewClock(start ...time.Time) *Clock {
	c := &Clock{start: Epoch}
	if len(start) > 0 {
		c.start = start[0]
	}
	return c
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(c.elapsed)
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elapsed += d
	return c.start.Add(c.elapsed)
}

// Elapsed returns the total advanced since the clock was created.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}
