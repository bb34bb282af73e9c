// Package feed holds the latest price per pair plus a bounded rolling
// sample window used for velocity computation.
package feed

import (
	"sync"
	"time"
)

// PriceSample is one (timestamp, price) point. Immutable once recorded.
type PriceSample struct {
	Time  time.Time
	Price float64
}

// Cache is the per-pair price state. Writes happen only on the engine loop
// (single writer); the RWMutex exists solely for external reads from the
// HTTP server, mirroring how the engine exposes snapshots elsewhere.
type Cache struct {
	mu      sync.RWMutex
	window  time.Duration
	samples map[string][]PriceSample
	latest  map[string]float64
}

// NewCache creates a cache with the given retention window (5m in production).
func NewCache(window time.Duration) *Cache {
	return &Cache{
		window:  window,
		samples: make(map[string][]PriceSample),
		latest:  make(map[string]float64),
	}
}

// Record appends a sample and prefix-trims anything older than ts-window.
// The timestamp is stamped on receipt, so upstream out-of-order ticks cannot
// break the buffer's time ordering.
func (c *Cache) Record(pair string, price float64, ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := c.samples[pair]
	if n := len(buf); n > 0 && ts.Before(buf[n-1].Time) {
		// Clock went backwards relative to the last receipt stamp; clamp so
		// the buffer stays time-ordered.
		ts = buf[n-1].Time
	}
	buf = append(buf, PriceSample{Time: ts, Price: price})

	cutoff := ts.Add(-c.window)
	i := 0
	for i < len(buf) && buf[i].Time.Before(cutoff) {
		i++
	}
	if i > 0 {
		buf = append(buf[:0], buf[i:]...)
	}

	c.samples[pair] = buf
	c.latest[pair] = price
}

// Latest returns the most recent price for a pair.
func (c *Cache) Latest(pair string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.latest[pair]
	return p, ok
}

// OldestInWindow returns the oldest retained sample for a pair.
func (c *Cache) OldestInWindow(pair string) (PriceSample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	buf := c.samples[pair]
	if len(buf) == 0 {
		return PriceSample{}, false
	}
	return buf[0], true
}

// Count returns the number of retained samples for a pair. Velocity needs
// at least two.
func (c *Cache) Count(pair string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples[pair])
}

// Pairs lists every pair that has reported at least one price.
func (c *Cache) Pairs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.latest))
	for p := range c.latest {
		out = append(out, p)
	}
	return out
}
