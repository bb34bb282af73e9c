package domain

import "time"

// Side is the direction of a bracketed position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Direction returns +1 for LONG and -1 for SHORT.
// Used as the sign in PnL math.
func (s Side) Direction() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// Mode selects the execution venue a position was opened against.
type Mode string

const (
	ModePaper Mode = "PAPER"
	ModeLive  Mode = "LIVE"
)

// Position represents one open bracketed trade.
// The Ledger is the single lifecycle owner; nobody else mutates it.
type Position struct {
	ID          string    `json:"id"`
	Pair        string    `json:"pair"`
	Side        Side      `json:"side"`
	EntryPrice  float64   `json:"entry_price"`
	Contracts   int64     `json:"contracts"` // always >= 1
	StopPrice   float64   `json:"stop_price"`
	TargetPrice float64   `json:"target_price"`
	RiskUSD     float64   `json:"risk_usd"`
	MarginUSD   float64   `json:"margin_usd"`
	Mode        Mode      `json:"mode"`
	OpenedAt    time.Time `json:"opened_at"`
}

// NotionalUSD is the dollar-equivalent exposure at entry.
func (p *Position) NotionalUSD() float64 {
	return float64(p.Contracts) * p.EntryPrice
}

// UnrealizedPnL recomputes the mark-to-market PnL at the given price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * float64(p.Contracts) * p.Side.Direction()
}

// HitStop reports whether price has crossed the stop, side-aware.
func (p *Position) HitStop(price float64) bool {
	if p.Side == SideShort {
		return price >= p.StopPrice
	}
	return price <= p.StopPrice
}

// HitTarget reports whether price has crossed the target, side-aware.
func (p *Position) HitTarget(price float64) bool {
	if p.Side == SideShort {
		return price <= p.TargetPrice
	}
	return price >= p.TargetPrice
}
