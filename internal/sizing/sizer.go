// Package sizing turns a fixed dollar risk budget and an ATR-derived stop
// distance into a margin-feasible integer contract quantity.
package sizing

import (
	"fmt"
	"math"

	"github.com/markremover/futures-oracle/internal/domain"
)

// Rejection reasons. These are policy outcomes, not errors.
const (
	ReasonInsufficientData     = "InsufficientData"
	ReasonPositionTooSmall     = "PositionTooSmall"
	ReasonBelowMinimumNotional = "BelowMinimumNotional"
	ReasonInsufficientMargin   = "InsufficientMargin"
)

// PairParams overrides the bracket multipliers for a specific pair. The
// high-volatility pairs run wider stops and targets.
type PairParams struct {
	StopATRMult   float64 `yaml:"stop_atr_mult"`
	TargetATRMult float64 `yaml:"target_atr_mult"`
}

// Config holds the sizing policy.
type Config struct {
	RiskUSD        float64               // fixed dollar risk per trade
	StopATRMult    float64               // stop distance = ATR * this
	TargetATRMult  float64               // target distance = ATR * this
	MinNotionalUSD float64               // exchange-imposed floor
	MarginHeadroom float64               // reject above headroom * balance
	PairOverrides  map[string]PairParams // keyed by normalized pair
}

// Sizing is a validated, margin-feasible position proposal.
type Sizing struct {
	Contracts   int64
	StopPrice   float64
	TargetPrice float64
	RiskUSD     float64 // actual risk = contracts * stopDistance
	MarginUSD   float64
	NotionalUSD float64
}

// Sizer applies the policy. Stateless; safe to share.
type Sizer struct {
	cfg Config
}

// NewSizer creates a sizer from config.
func NewSizer(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size computes the bracket for a candidate entry.
//
// contracts = floor(risk / stopDistance): truncation is intentional, risk is
// never rounded up. Rejections carry one of the Reason* constants plus a
// human-readable detail.
func (s *Sizer) Size(pair string, side domain.Side, price, atr, balance, leverage float64) (Sizing, domain.Decision) {
	if atr <= 0 || price <= 0 {
		return Sizing{}, domain.Blocked(fmt.Sprintf("%s: ATR/price unavailable for %s", ReasonInsufficientData, pair))
	}

	stopMult, targetMult := s.cfg.StopATRMult, s.cfg.TargetATRMult
	if ov, ok := s.cfg.PairOverrides[pair]; ok {
		if ov.StopATRMult > 0 {
			stopMult = ov.StopATRMult
		}
		if ov.TargetATRMult > 0 {
			targetMult = ov.TargetATRMult
		}
	}

	stopDistance := atr * stopMult
	targetDistance := atr * targetMult

	contracts := int64(math.Floor(s.cfg.RiskUSD / stopDistance))
	if contracts < 1 {
		return Sizing{}, domain.Blocked(fmt.Sprintf("%s: stop distance %.4f too wide for $%.2f risk", ReasonPositionTooSmall, stopDistance, s.cfg.RiskUSD))
	}

	notional := float64(contracts) * price
	if notional < s.cfg.MinNotionalUSD {
		return Sizing{}, domain.Blocked(fmt.Sprintf("%s: notional $%.2f below $%.2f floor", ReasonBelowMinimumNotional, notional, s.cfg.MinNotionalUSD))
	}

	if leverage <= 0 {
		leverage = 1
	}
	margin := notional / leverage
	if margin > s.cfg.MarginHeadroom*balance {
		return Sizing{}, domain.Blocked(fmt.Sprintf("%s: need $%.2f margin, headroom $%.2f", ReasonInsufficientMargin, margin, s.cfg.MarginHeadroom*balance))
	}

	sz := Sizing{
		Contracts:   contracts,
		RiskUSD:     float64(contracts) * stopDistance,
		MarginUSD:   margin,
		NotionalUSD: notional,
	}
	if side == domain.SideShort {
		sz.StopPrice = price + stopDistance
		sz.TargetPrice = price - targetDistance
	} else {
		sz.StopPrice = price - stopDistance
		sz.TargetPrice = price + targetDistance
	}
	return sz, domain.Allowed()
}
