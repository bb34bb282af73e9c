package infra

import (
	"log/slog"
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "CLOSED"
	case breakerOpen:
		return "OPEN"
	case breakerHalfOpen:
		return "HALF_OPEN"
	}
	return "UNKNOWN"
}

// Breaker isolates a flaky upstream: after tripThreshold consecutive failures
// it rejects calls for cooldown, then lets probes through and re-closes after
// probeTarget successes. Safe for concurrent use.
type Breaker struct {
	name string

	mu       sync.Mutex
	state    breakerState
	fails    int
	probes   int
	openedAt time.Time

	tripThreshold int
	probeTarget   int
	cooldown      time.Duration
}

// NewBreaker creates a breaker with defaults suited to REST polling:
// trip after 5 failures, retry after 30s, re-close after 2 good probes.
func NewBreaker(name string) *Breaker {
	return &Breaker{
		name:          name,
		tripThreshold: 5,
		probeTarget:   2,
		cooldown:      30 * time.Second,
	}
}

// NewBreakerWith creates a breaker with explicit thresholds.
func NewBreakerWith(name string, tripThreshold, probeTarget int, cooldown time.Duration) *Breaker {
	return &Breaker{
		name:          name,
		tripThreshold: tripThreshold,
		probeTarget:   probeTarget,
		cooldown:      cooldown,
	}
}

// Allow reports whether a call may proceed right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed, breakerHalfOpen:
		return true
	case breakerOpen:
		if time.Since(b.openedAt) > b.cooldown {
			b.state = breakerHalfOpen
			b.probes = 0
			slog.Info("Breaker probing upstream", slog.String("name", b.name))
			return true
		}
		return false
	}
	return false
}

// RecordSuccess notes a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		b.fails = 0
	case breakerHalfOpen:
		b.probes++
		if b.probes >= b.probeTarget {
			b.state = breakerClosed
			b.fails = 0
			b.probes = 0
			slog.Info("Breaker closed, upstream recovered", slog.String("name", b.name))
		}
	}
}

// RecordFailure notes a failed call, possibly tripping the breaker.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.openedAt = time.Now()

	switch b.state {
	case breakerClosed:
		b.fails++
		if b.fails >= b.tripThreshold {
			b.state = breakerOpen
			slog.Warn("Breaker open",
				slog.String("name", b.name), slog.Int("failures", b.fails))
		}
	case breakerHalfOpen:
		b.state = breakerOpen
		b.probes = 0
		slog.Warn("Breaker re-opened, probe failed", slog.String("name", b.name))
	}
}

// State returns the current state name for logs and diagnostics.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}
