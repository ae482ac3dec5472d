// Package ratelimit implements a fixed-window request limiter keyed by caller
// identity, with in-memory and Redis backends and an HTTP middleware.
package ratelimit

import (
	"context"
	"time"
)

// Defaults match the public recommendation endpoint: 5 requests per second.
const (
	DefaultLimit  = 5
	DefaultWindow = time.Second
)

const keyPrefix = "ratelimit:"

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is when the current window ends.
	Reset time.Time
	// RetryIn is the time left in the window, measured on the limiter's
	// clock.
	RetryIn time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

func normalize(limit int, window time.Duration, now func() time.Time) (int, time.Duration, func() time.Time) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return limit, window, now
}
