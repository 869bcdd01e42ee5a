package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/docuflow/engine/internal/entity"
	"github.com/docuflow/engine/internal/metrics"
)

// CachedResult is what one successful pipeline run leaves behind. A
// needs_review outcome is cached too: re-running the same bytes against the
// same schema would reproduce it.
type CachedResult struct {
	Record     entity.ExtractedRecord
	Engine     string
	Confidence float32
	Status     string
	Attempts   int
}

type cacheEntry struct {
	result    CachedResult
	expiresAt time.Time
}

// ResultCache deduplicates extraction work: identical (document, schema)
// pairs within the TTL share one stored result, and concurrent requests for
// the same key collapse into a single in-flight run.
type ResultCache struct {
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry

	group singleflight.Group

	stop     chan struct{}
	stopOnce sync.Once
}

func NewResultCache(ttl time.Duration, logger *slog.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &ResultCache{
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		entries: make(map[string]cacheEntry),
		stop:    make(chan struct{}),
	}
	go c.janitor()
	return c
}

// janitor sweeps expired entries so an idle cache does not hold dead keys
// until the next lookup touches them.
func (c *ResultCache) janitor() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *ResultCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("cache.swept", "removed", removed, "live", len(c.entries))
	}
}

// Close stops the background sweeper. Safe to call more than once.
func (c *ResultCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// GetOrCompute returns the cached result for key, or runs compute exactly
// once per key across concurrent callers. Failed computations are not
// stored; the next caller retries.
func (c *ResultCache) GetOrCompute(ctx context.Context, key Key, compute func(ctx context.Context) (CachedResult, error)) (CachedResult, bool, error) {
	k := key.String()
	if res, ok := c.lookup(k); ok {
		metrics.IncCacheRequest("hit")
		c.logger.Debug("cache.hit", "key", k)
		return res, true, nil
	}

	v, err, shared := c.group.Do(k, func() (any, error) {
		// a racing caller may have stored the result while we waited
		if res, ok := c.lookup(k); ok {
			return res, nil
		}
		metrics.IncCacheRequest("miss")
		res, err := compute(ctx)
		if err != nil {
			return CachedResult{}, err
		}
		c.store(k, res)
		return res, nil
	})
	if err != nil {
		return CachedResult{}, false, err
	}
	res := v.(CachedResult)
	if shared {
		metrics.IncCacheRequest("coalesced")
		c.logger.Debug("cache.coalesced", "key", k)
	}
	return cloneResult(res), shared, nil
}

// Invalidate drops one key.
func (c *ResultCache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key.String())
}

// Len reports live (unexpired) entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	now := c.now()
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

func (c *ResultCache) lookup(k string) (CachedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok {
		return CachedResult{}, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, k)
		return CachedResult{}, false
	}
	return cloneResult(e.result), true
}

func (c *ResultCache) store(k string, res CachedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[k] = cacheEntry{result: cloneResult(res), expiresAt: c.now().Add(c.ttl)}
}

// cloneResult keeps stored records isolated from caller mutation.
func cloneResult(res CachedResult) CachedResult {
	res.Record = res.Record.Clone()
	return res
}
