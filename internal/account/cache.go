// Package account caches balance and leverage lookups on a TTL so the
// engine loop never hammers the account source on every signal.
package account

import (
	"context"
	"time"
)

// Source is the external account/leverage provider.
type Source interface {
	FetchBalance(ctx context.Context) (float64, error)
	FetchMaxLeverage(ctx context.Context, pair string) (float64, error)
}

// Static is the simulated-mode source: fixed virtual values, no I/O.
type Static struct {
	BalanceUSD float64
	Leverage   float64
}

func (s Static) FetchBalance(ctx context.Context) (float64, error) { return s.BalanceUSD, nil }
func (s Static) FetchMaxLeverage(ctx context.Context, pair string) (float64, error) {
	return s.Leverage, nil
}

type leverageEntry struct {
	value     float64
	fetchedAt time.Time
}

// Cache wraps a Source with a 30s TTL. Engine-loop only: no locking.
type Cache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	balance   float64
	balanceAt time.Time
	leverage  map[string]leverageEntry
}

// NewCache creates a cache around the source.
func NewCache(source Source, ttl time.Duration) *Cache {
	return &Cache{
		source:   source,
		ttl:      ttl,
		now:      time.Now,
		leverage: make(map[string]leverageEntry),
	}
}

// Balance returns the cached available balance, refreshing past the TTL.
// A refresh failure surfaces only when there is no cached value at all;
// otherwise the stale value is served and the error swallowed by the caller's
// soft-failure policy on the next cycle.
func (c *Cache) Balance(ctx context.Context) (float64, error) {
	if !c.balanceAt.IsZero() && c.now().Sub(c.balanceAt) < c.ttl {
		return c.balance, nil
	}
	v, err := c.source.FetchBalance(ctx)
	if err != nil {
		if c.balanceAt.IsZero() {
			return 0, err
		}
		return c.balance, nil
	}
	c.balance = v
	c.balanceAt = c.now()
	return v, nil
}

// MaxLeverage returns the cached per-pair leverage, refreshing past the TTL.
func (c *Cache) MaxLeverage(ctx context.Context, pair string) (float64, error) {
	if e, ok := c.leverage[pair]; ok && c.now().Sub(e.fetchedAt) < c.ttl {
		return e.value, nil
	}
	v, err := c.source.FetchMaxLeverage(ctx, pair)
	if err != nil {
		if e, ok := c.leverage[pair]; ok {
			return e.value, nil
		}
		return 0, err
	}
	c.leverage[pair] = leverageEntry{value: v, fetchedAt: c.now()}
	return v, nil
}
