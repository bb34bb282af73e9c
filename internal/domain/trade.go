package domain

import "time"

// TradeResult is the terminal outcome of a trade record.
type TradeResult string

const (
	ResultPending TradeResult = "PENDING"
	ResultWin     TradeResult = "WIN"
	ResultLoss    TradeResult = "LOSS"
)

// TradeRecord is the historical outcome entry backing the daily-trade-count
// and post-loss cooldown rules. Records older than 24h are pruned from the
// in-memory window (the journal keeps them for reporting).
type TradeRecord struct {
	ID       string      `json:"id"`
	Pair     string      `json:"pair"`
	Side     Side        `json:"side"`
	OpenedAt time.Time   `json:"opened_at"`
	ClosedAt time.Time   `json:"closed_at,omitempty"`
	Result   TradeResult `json:"result"`
	PnLUSD   float64     `json:"pnl_usd"`
}

// Decision is the structured outcome of an admission check. Gates return
// reasons, never errors: callers branch on Allow.
type Decision struct {
	Allow  bool
	Reason string
}

// Allowed is the zero-friction positive decision.
func Allowed() Decision { return Decision{Allow: true} }

// Blocked builds a denial with a human-readable reason.
func Blocked(reason string) Decision { return Decision{Allow: false, Reason: reason} }
