package catalog

import (
	"context"
	"io"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"dinepick/internal/metrics"
	"dinepick/pkg/interfaces"
	"dinepick/pkg/types"
)

// Cache defaults
const (
	DefaultCacheSize = 128
	DefaultCacheTTL  = 5 * time.Minute
)

// Cached memoizes successful searches of another provider.
// Failed searches are never cached.
type Cached struct {
	next interfaces.CandidateProvider
	lru  *expirable.LRU[string, []types.Candidate]
}

// NewCached wraps next with an LRU of size entries that expire after ttl.
func NewCached(next interfaces.CandidateProvider, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		next: next,
		lru:  expirable.NewLRU[string, []types.Candidate](size, nil, ttl),
	}
}

// Search implements interfaces.CandidateProvider.
func (c *Cached) Search(ctx context.Context, query types.CandidateQuery) ([]types.Candidate, error) {
	key := normalize(query)
	if hit, ok := c.lru.Get(key); ok {
		metrics.CatalogCacheLookups.WithLabelValues(metrics.ResultHit).Inc()
		return clone(hit), nil
	}
	metrics.CatalogCacheLookups.WithLabelValues(metrics.ResultMiss).Inc()

	candidates, err := c.next.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, clone(candidates))
	return candidates, nil
}

// Purge drops every cached result.
func (c *Cached) Purge() {
	c.lru.Purge()
}

// Len returns the number of cached queries.
func (c *Cached) Len() int {
	return c.lru.Len()
}

// HealthCheck delegates to the wrapped provider when it has one.
func (c *Cached) HealthCheck(ctx context.Context) error {
	if hc, ok := c.next.(interfaces.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// Close closes the wrapped provider when it holds resources.
func (c *Cached) Close() error {
	if closer, ok := c.next.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
