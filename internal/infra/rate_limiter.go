package infra

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket: burst tokens up front, refilled at a fixed
// per-second rate. Wait blocks until a token is free; TryAcquire never
// blocks. Safe for concurrent use.
type RateLimiter struct {
	mu    sync.Mutex
	level float64 // tokens currently in the bucket
	burst float64
	rate  float64   // tokens per second
	stamp time.Time // last time level was brought current
}

// NewRateLimiter creates a bucket holding burst tokens, refilled at
// perSecond.
func NewRateLimiter(burst int, perSecond float64) *RateLimiter {
	return &RateLimiter{
		level: float64(burst),
		burst: float64(burst),
		rate:  perSecond,
		stamp: time.Now(),
	}
}

// advance credits tokens accrued since the last update. Caller holds mu.
func (r *RateLimiter) advance(now time.Time) {
	r.level += now.Sub(r.stamp).Seconds() * r.rate
	if r.level > r.burst {
		r.level = r.burst
	}
	r.stamp = now
}

// TryAcquire takes a token if one is available right now.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance(time.Now())
	if r.level < 1 {
		return false
	}
	r.level--
	return true
}

// Wait sleeps out the token deficit, then takes one.
func (r *RateLimiter) Wait() {
	for {
		r.mu.Lock()
		r.advance(time.Now())
		if r.level >= 1 {
			r.level--
			r.mu.Unlock()
			return
		}
		deficit := 1 - r.level
		r.mu.Unlock()
		time.Sleep(time.Duration(deficit / r.rate * float64(time.Second)))
	}
}

// Shared limiters for the Coinbase APIs. Authenticated order/account calls
// are throttled harder than public market data; both sit well under the
// documented limits to stay clear of IP bans.
var (
	limiterOnce   sync.Once
	orderLimiter  *RateLimiter
	marketLimiter *RateLimiter
)

// GetCoinbaseOrderLimiter throttles order and account endpoints: 10 req/s,
// burst 5.
func GetCoinbaseOrderLimiter() *RateLimiter {
	limiterOnce.Do(buildCoinbaseLimiters)
	return orderLimiter
}

// GetCoinbaseMarketLimiter throttles market-data endpoints: 20 req/s,
// burst 10.
func GetCoinbaseMarketLimiter() *RateLimiter {
	limiterOnce.Do(buildCoinbaseLimiters)
	return marketLimiter
}

func buildCoinbaseLimiters() {
	orderLimiter = NewRateLimiter(5, 10)
	marketLimiter = NewRateLimiter(10, 20)
}
