// Package event defines the message types flowing into the engine inbox.
// Everything the engine reacts to arrives as one of these values; workers
// never touch engine state directly.
package event

import (
	"time"

	"github.com/markremover/futures-oracle/internal/domain"
)

// PriceTick is one trade-price observation from the feed worker. Ts is the
// receipt timestamp stamped by the worker, not the exchange timestamp.
type PriceTick struct {
	Pair  string
	Price float64
	Ts    time.Time
}

// Sweep asks the engine to re-evaluate all open positions against the latest
// cached prices. Emitted by the sweep ticker.
type Sweep struct {
	Ts time.Time
}

// ManualClose asks the engine to close a position by order id. Reply carries
// the decision back to the HTTP handler; the channel must be buffered (1).
type ManualClose struct {
	OrderID string
	HitStop bool
	Reply   chan domain.Decision
}

// FeedState reports feed connectivity transitions for metrics and logging.
type FeedState struct {
	Connected bool
}
