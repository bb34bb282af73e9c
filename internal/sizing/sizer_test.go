package sizing_test

import (
	"math"
	"strings"
	"testing"

	"github.com/markremover/futures-oracle/internal/domain"
	"github.com/markremover/futures-oracle/internal/sizing"
)

func testSizer() *sizing.Sizer {
	return sizing.NewSizer(sizing.Config{
		RiskUSD:        10,
		StopATRMult:    1.5,
		TargetATRMult:  3.0,
		MinNotionalUSD: 10,
		MarginHeadroom: 0.95,
	})
}

func TestSizer_LongBracket(t *testing.T) {
	s := testSizer()
	// ATR 2 -> stop distance 3, target distance 6, contracts = floor(10/3) = 3.
	sz, d := s.Size("ETH-USD", domain.SideLong, 2500, 2, 10000, 10)
	if !d.Allow {
		t.Fatalf("unexpected rejection: %s", d.Reason)
	}
	if sz.Contracts != 3 {
		t.Errorf("contracts = %d, want 3", sz.Contracts)
	}
	if sz.StopPrice != 2497 || sz.TargetPrice != 2506 {
		t.Errorf("bracket = (%v, %v), want (2497, 2506)", sz.StopPrice, sz.TargetPrice)
	}
	if sz.RiskUSD != 9 {
		t.Errorf("actual risk = %v, want 9", sz.RiskUSD)
	}
	if sz.MarginUSD != 750 {
		t.Errorf("margin = %v, want 750", sz.MarginUSD)
	}
}

func TestSizer_ShortBracketMirrored(t *testing.T) {
	s := testSizer()
	sz, d := s.Size("ETH-USD", domain.SideShort, 2500, 2, 10000, 10)
	if !d.Allow {
		t.Fatalf("unexpected rejection: %s", d.Reason)
	}
	if sz.StopPrice != 2503 || sz.TargetPrice != 2494 {
		t.Errorf("bracket = (%v, %v), want (2503, 2494)", sz.StopPrice, sz.TargetPrice)
	}
}

// Property: contracts * stopDistance never exceeds the risk budget.
func TestSizer_NeverExceedsRiskBudget(t *testing.T) {
	s := testSizer()
	for _, atr := range []float64{0.01, 0.37, 1, 2.5, 3.33, 6.66} {
		sz, d := s.Size("ETH-USD", domain.SideLong, 5000, atr, 1e9, 10)
		if !d.Allow {
			continue // rejected sizes carry no risk at all
		}
		stopDistance := atr * 1.5
		if got := float64(sz.Contracts) * stopDistance; got > 10+1e-9 {
			t.Errorf("atr=%v: risk %v exceeds $10 budget", atr, got)
		}
	}
}

func TestSizer_Rejections(t *testing.T) {
	s := testSizer()
	tests := []struct {
		name     string
		price    float64
		atr      float64
		balance  float64
		leverage float64
		reason   string
	}{
		{"ZeroATR", 2500, 0, 10000, 10, sizing.ReasonInsufficientData},
		{"TooWideStop", 2500, 10, 10000, 10, sizing.ReasonPositionTooSmall}, // stop 15 > $10 risk
		{"BelowMinNotional", 5, 1, 10000, 10, sizing.ReasonBelowMinimumNotional},
		{"InsufficientMargin", 2500, 2, 100, 10, sizing.ReasonInsufficientMargin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, d := s.Size("ETH-USD", domain.SideLong, tt.price, tt.atr, tt.balance, tt.leverage)
			if d.Allow {
				t.Fatal("expected rejection")
			}
			if !strings.HasPrefix(d.Reason, tt.reason) {
				t.Errorf("reason = %q, want prefix %q", d.Reason, tt.reason)
			}
		})
	}
}

// price=5, one contract -> notional 5 < $10 exchange floor.
func TestSizer_MinimumNotionalScenario(t *testing.T) {
	s := testSizer()
	// ATR ~6.66 gives stop distance ~10, exactly one contract.
	_, d := s.Size("DOGE-USD", domain.SideLong, 5, 6.6, 10000, 10)
	if d.Allow {
		t.Fatal("expected BelowMinimumNotional rejection")
	}
	if !strings.HasPrefix(d.Reason, sizing.ReasonBelowMinimumNotional) {
		t.Errorf("reason = %q, want BelowMinimumNotional", d.Reason)
	}
}

func TestSizer_PairOverrides(t *testing.T) {
	s := sizing.NewSizer(sizing.Config{
		RiskUSD:        10,
		StopATRMult:    1.5,
		TargetATRMult:  3.0,
		MinNotionalUSD: 10,
		MarginHeadroom: 0.95,
		PairOverrides: map[string]sizing.PairParams{
			"DOGE-USD": {StopATRMult: 1.8, TargetATRMult: 3.5},
		},
	})
	sz, d := s.Size("DOGE-USD", domain.SideLong, 100, 1, 10000, 10)
	if !d.Allow {
		t.Fatalf("unexpected rejection: %s", d.Reason)
	}
	if math.Abs(sz.StopPrice-98.2) > 1e-9 || math.Abs(sz.TargetPrice-103.5) > 1e-9 {
		t.Errorf("override bracket = (%v, %v), want (98.2, 103.5)", sz.StopPrice, sz.TargetPrice)
	}
}

func TestSizer_DefaultLeverage(t *testing.T) {
	s := testSizer()
	// leverage 0 falls back to 1x: margin equals notional.
	sz, d := s.Size("ETH-USD", domain.SideLong, 100, 2, 10000, 0)
	if !d.Allow {
		t.Fatalf("unexpected rejection: %s", d.Reason)
	}
	if sz.MarginUSD != sz.NotionalUSD {
		t.Errorf("margin = %v, want notional %v at 1x", sz.MarginUSD, sz.NotionalUSD)
	}
}
