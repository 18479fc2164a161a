package polymarket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	value    any
	storedAt time.Time
}

// resultCache is a bounded TTL cache of successful operation results.
// Concurrent misses for one key share a single upstream call.
type resultCache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group
	metrics *Metrics
}

func newResultCache(size int, ttl time.Duration, now func() time.Time, metrics *Metrics) *resultCache {
	if ttl <= 0 {
		return nil
	}
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil
	}
	return &resultCache{entries: entries, ttl: ttl, now: now, metrics: metrics}
}

func (c *resultCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		c.entries.Remove(key)
		return nil, false
	}
	return entry.value, true
}

func (c *resultCache) put(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, cacheEntry{value: v, storedAt: c.now()})
}

// do returns the cached value for key or runs fn. Only successful values are
// stored. A nil cache always runs fn.
//
// The shared upstream call runs detached from the cancellation of whichever
// caller started it; every caller, the first included, stops waiting when its
// own ctx is done.
func (c *resultCache) do(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	if c == nil {
		return fn(ctx)
	}
	if v, ok := c.get(key); ok {
		c.metrics.cacheResult("hit")
		return v, nil
	}
	c.metrics.cacheResult("miss")

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if v, ok := c.get(key); ok {
			return v, nil
		}
		v, err := fn(shared)
		if err != nil {
			return nil, err
		}
		c.put(key, v)
		return v, nil
	})

	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *resultCache) len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// cacheKey is op joined with the JSON encoding of args; encoding/json sorts
// map keys, so equal arguments give equal keys.
func cacheKey(op string, args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return op + ":{}"
	}
	return op + ":" + string(data)
}
