package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the window counter and starts its expiry on
// the first hit. It returns {count, ttl_ms}.
const fixedWindowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`

// Evaler is the subset of a go-redis client the limiter needs.
type Evaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// RedisLimiter shares windows between instances through Redis.
type RedisLimiter struct {
	client Evaler
	limit  int
	window time.Duration
	now    func() time.Time
}

// Compile-time interface guard.
var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a RedisLimiter. Zero values select the defaults.
func NewRedisLimiter(client Evaler, limit int, win time.Duration, now func() time.Time) *RedisLimiter {
	limit, win, now = normalize(limit, win, now)
	return &RedisLimiter{client: client, limit: limit, window: win, now: now}
}

// DialRedis creates a client from a redis:// or rediss:// URL.
func DialRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// Allow counts one request against key's current window.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := r.client.Eval(ctx, fixedWindowScript, []string{keyPrefix + key}, r.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("redis rate limit: unexpected reply length %d", len(res))
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	return Decision{
		Allowed:   count <= r.limit,
		Limit:     r.limit,
		Remaining: max(r.limit-count, 0),
		Reset:     r.now().Add(ttl),
		RetryIn:   ttl,
	}, nil
}
