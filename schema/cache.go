package schema

import (
	"context"
	"sync"
	"time"
)

// fkCache is a TTL cache of rendered schema Markdown owned by one
// CachedIntrospector, keyed by schema name, so that repeated pipeline runs
// through that introspector against the same database
// don't re-sample foreign key value ranges on every request.
type fkCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	markdown  string
	expiresAt time.Time
}

func newFKCache(ttl time.Duration) *fkCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &fkCache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

func (c *fkCache) get(key string, now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || now.After(entry.expiresAt) {
		return "", false
	}
	return entry.markdown, true
}

func (c *fkCache) set(key, markdown string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{markdown: markdown, expiresAt: now.Add(c.ttl)}
}

// CachedIntrospector wraps an Introspector with a TTL cache over its
// rendered Markdown output, keyed by schema name (spec's supplemented FK
// value-range caching feature).
type CachedIntrospector struct {
	in    *Introspector
	cache *fkCache
}

// NewCachedIntrospector wraps in with a TTL cache. ttl <= 0 defaults to 5
// minutes.
func NewCachedIntrospector(in *Introspector, ttl time.Duration) *CachedIntrospector {
	return &CachedIntrospector{in: in, cache: newFKCache(ttl)}
}

// DescribeMarkdown returns the cached Markdown rendering for schemaName if
// still fresh, otherwise re-introspects the database and refreshes the
// cache entry. now is supplied by the caller so cache expiry is testable
// without a real clock.
func (c *CachedIntrospector) DescribeMarkdown(ctx context.Context, schemaName string, now time.Time) (string, error) {
	if cached, ok := c.cache.get(schemaName, now); ok {
		return cached, nil
	}

	tables, err := c.in.Describe(ctx)
	if err != nil {
		return "", err
	}

	markdown := RenderMarkdown(tables)
	c.cache.set(schemaName, markdown, now)
	return markdown, nil
}
