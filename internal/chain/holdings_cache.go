package chain

import (
	"context"
	"maps"
	"time"

	"github.com/emperorhan/holder-gate/internal/cache"
	"github.com/emperorhan/holder-gate/internal/metrics"
)

// CachedHoldings memoizes successful holdings lookups for a short TTL so one
// sweep across several guilds fetches each address once. Failures are not cached.
type CachedHoldings struct {
	next  HoldingsLookup
	cache *cache.LRU[string, map[string]int]
}

var _ HoldingsLookup = (*CachedHoldings)(nil)

func NewCachedHoldings(next HoldingsLookup, capacity int, ttl time.Duration) *CachedHoldings {
	return &CachedHoldings{
		next:  next,
		cache: cache.NewLRU[string, map[string]int](capacity, ttl),
	}
}

func (c *CachedHoldings) Source() string { return c.next.Source() }

func (c *CachedHoldings) AssetCounts(ctx context.Context, address string) (map[string]int, error) {
	if counts, ok := c.cache.Get(address); ok {
		metrics.HoldingsCacheLookups.WithLabelValues("hit").Inc()
		return maps.Clone(counts), nil
	}
	metrics.HoldingsCacheLookups.WithLabelValues("miss").Inc()

	counts, err := c.next.AssetCounts(ctx, address)
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = map[string]int{}
	}
	c.cache.Put(address, maps.Clone(counts))
	return counts, nil
}

// Invalidate drops the cached holdings of address.
func (c *CachedHoldings) Invalidate(address string) {
	c.cache.Delete(address)
}
