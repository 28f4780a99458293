// internal/price/cache.go
package price

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rovshanmuradov/memeswap/internal/swap"
)

type entry struct {
	price     decimal.Decimal
	fetchedAt time.Time
}

// Cache wraps a PriceSource with a per-mint TTL and collapses concurrent
// lookups for the same set of mints into one upstream call.
type Cache struct {
	source swap.PriceSource
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry
}

// NewCache creates a cache. A zero ttl disables caching but keeps request
// collapsing.
func NewCache(source swap.PriceSource, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		source:  source,
		ttl:     ttl,
		logger:  logger.Named("price_cache"),
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// USDPrices serves fresh cached prices and fetches the rest.
func (c *Cache) USDPrices(ctx context.Context, mints ...string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(mints))
	missing := make([]string, 0, len(mints))

	c.mu.RLock()
	now := c.now()
	for _, m := range mints {
		if e, ok := c.entries[m]; ok && c.ttl > 0 && now.Sub(e.fetchedAt) < c.ttl {
			out[m] = e.price
			continue
		}
		missing = append(missing, m)
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return out, nil
	}

	sort.Strings(missing)
	key := strings.Join(missing, ",")
	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		return c.source.USDPrices(ctx, missing...)
	})
	if err != nil {
		c.logger.Warn("Price lookup failed", zap.Strings("mints", missing), zap.Error(err))
		return nil, err
	}
	fetched := v.(map[string]decimal.Decimal)
	if shared {
		c.logger.Debug("Price lookup shared", zap.String("key", key))
	}

	c.mu.Lock()
	now = c.now()
	for m, p := range fetched {
		c.entries[m] = entry{price: p, fetchedAt: now}
		out[m] = p
	}
	c.mu.Unlock()
	return out, nil
}

// Invalidate drops every cached price.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

var _ swap.PriceSource = (*Cache)(nil)
