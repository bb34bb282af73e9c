package domain

// NotificationType tags outbound automation events.
type NotificationType string

const (
	NotifyOpen   NotificationType = "OPEN"
	NotifyClose  NotificationType = "CLOSE"
	NotifySystem NotificationType = "SYSTEM_REPORT"
)

// Notification is the outbound event shape delivered to the automation layer.
// Delivery is best-effort: failure is logged, never retried synchronously,
// and never blocks the engine loop.
type Notification struct {
	Pair        string           `json:"pair"`
	Side        Side             `json:"side,omitempty"`
	Type        NotificationType `json:"type"`
	EntryPrice  float64          `json:"entry_price,omitempty"`
	ExitPrice   float64          `json:"exit_price,omitempty"`
	StopPrice   float64          `json:"stop_price,omitempty"`
	TargetPrice float64          `json:"target_price,omitempty"`
	PnLUSD      float64          `json:"pnl,omitempty"`
	Result      TradeResult      `json:"result,omitempty"`
	Message     string           `json:"message,omitempty"`
	Timestamp   int64            `json:"timestamp"` // Unix millis
}

// Verdict is the advisory oracle's opinion on a market snapshot. The oracle
// is an opaque black box: any in-range value must be accepted and malformed
// responses degrade to "no signal" at the call site.
type Verdict struct {
	Signal     string  `json:"signal"` // "BUY", "SELL", "HOLD"
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// MarketSnapshot is the context handed to the advisory oracle.
type MarketSnapshot struct {
	Pair        string  `json:"pair"`
	Price       float64 `json:"price"`
	VelocityPct float64 `json:"velocity_pct"`
	Side        Side    `json:"proposed_side"`
	Sentiment   string  `json:"market_sentiment,omitempty"`
}
