package syncer

import (
	"sync"
	"time"

	"tickline/internal/market"
)

// quoteCache is a small capacity- and TTL-bounded in-memory cache in front
// of the snapshot table. Explicitly owned by the watchlist synchronizer;
// there are no package-level caches in this codebase.
type quoteCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]cacheEntry
}

type cacheEntry struct {
	quote     market.Quote
	expiresAt time.Time
}

func newQuoteCache(capacity int) *quoteCache {
	if capacity <= 0 {
		capacity = 512
	}
	return &quoteCache{
		capacity: capacity,
		entries:  make(map[string]cacheEntry, capacity),
	}
}

func (c *quoteCache) Get(symbol string, now time.Time) (market.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[symbol]
	if !ok {
		return market.Quote{}, false
	}
	if now.After(e.expiresAt) {
		delete(c.entries, symbol)
		return market.Quote{}, false
	}
	return e.quote, true
}

func (c *quoteCache) Set(symbol string, q market.Quote, now time.Time, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.capacity {
		c.evictLocked(now)
	}
	c.entries[symbol] = cacheEntry{quote: q, expiresAt: now.Add(ttl)}
}

// evictLocked clears expired entries, then the soonest-to-expire if still at
// capacity.
func (c *quoteCache) evictLocked(now time.Time) {
	for sym, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, sym)
		}
	}
	if len(c.entries) < c.capacity {
		return
	}
	var victim string
	var soonest time.Time
	for sym, e := range c.entries {
		if victim == "" || e.expiresAt.Before(soonest) {
			victim = sym
			soonest = e.expiresAt
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}
