package recommend

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Really-Cool/mcpapi/pkg/models"
)

// Cache defaults.
const (
	DefaultCacheTTL      = 24 * time.Hour
	DefaultCacheCapacity = 1024
)

// Cache stores recommendation results keyed by the literal query string.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(query string) (models.Recommendation, bool)
	Put(query string, result models.Recommendation)
}

type cacheEntry struct {
	result   models.Recommendation
	storedAt time.Time
}

// MemoryCache is a process-local Cache with a TTL and least-recently-used
// eviction once capacity is reached.
type MemoryCache struct {
	entries *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	now     func() time.Time
}

// Compile-time interface guard.
var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a MemoryCache. Non-positive capacity or ttl fall
// back to the defaults; a nil now uses time.Now.
func NewMemoryCache(capacity int, ttl time.Duration, now func() time.Time) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, cacheEntry](capacity)
	return &MemoryCache{entries: entries, ttl: ttl, now: now}
}

func cacheKey(query string) string {
	return "recommend:" + query
}

// Get returns the cached result for query if it was stored less than ttl ago.
func (c *MemoryCache) Get(query string) (models.Recommendation, bool) {
	e, ok := c.entries.Get(cacheKey(query))
	if !ok {
		return models.Recommendation{}, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		return models.Recommendation{}, false
	}
	return cloneResult(e.result), true
}

// Put stores result for query, replacing any previous entry.
func (c *MemoryCache) Put(query string, result models.Recommendation) {
	c.entries.Add(cacheKey(query), cacheEntry{result: cloneResult(result), storedAt: c.now()})
}

// Len returns the number of stored entries, fresh or stale.
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

func cloneResult(r models.Recommendation) models.Recommendation {
	out := r
	out.Recommendations = make([]models.Listing, len(r.Recommendations))
	copy(out.Recommendations, r.Recommendations)
	return out
}
