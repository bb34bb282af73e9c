package domain

import "testing"

func TestPosition_BracketChecks(t *testing.T) {
	tests := []struct {
		name      string
		side      Side
		price     float64
		hitStop   bool
		hitTarget bool
	}{
		{"LongAboveTarget", SideLong, 2610, false, true},
		{"LongAtTarget", SideLong, 2600, false, true},
		{"LongInside", SideLong, 2500, false, false},
		{"LongAtStop", SideLong, 2450, true, false},
		{"ShortAtTarget", SideShort, 2400, false, true},
		{"ShortInside", SideShort, 2500, false, false},
		{"ShortAtStop", SideShort, 2550, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Position{Side: tt.side, EntryPrice: 2500, Contracts: 2}
			if tt.side == SideLong {
				p.StopPrice, p.TargetPrice = 2450, 2600
			} else {
				p.StopPrice, p.TargetPrice = 2550, 2400
			}
			if got := p.HitStop(tt.price); got != tt.hitStop {
				t.Errorf("HitStop(%v) = %v, want %v", tt.price, got, tt.hitStop)
			}
			if got := p.HitTarget(tt.price); got != tt.hitTarget {
				t.Errorf("HitTarget(%v) = %v, want %v", tt.price, got, tt.hitTarget)
			}
		})
	}
}

func TestPosition_UnrealizedPnL(t *testing.T) {
	long := &Position{Side: SideLong, EntryPrice: 100, Contracts: 3}
	if got := long.UnrealizedPnL(110); got != 30 {
		t.Errorf("long PnL = %v, want 30", got)
	}
	short := &Position{Side: SideShort, EntryPrice: 100, Contracts: 3}
	if got := short.UnrealizedPnL(110); got != -30 {
		t.Errorf("short PnL = %v, want -30", got)
	}
}

func TestNormalizePair(t *testing.T) {
	tests := []struct{ in, want string }{
		{"ETH-PERP", "ETH-USD"},
		{"ETH-USD", "ETH-USD"},
		{"DOGE-PERP", "DOGE-USD"},
		{"BTC", "BTC"},
	}
	for _, tt := range tests {
		if got := NormalizePair(tt.in); got != tt.want {
			t.Errorf("NormalizePair(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPairSymbol(t *testing.T) {
	if got := PairSymbol("ETH-USD"); got != "eth" {
		t.Errorf("PairSymbol = %q, want eth", got)
	}
	if got := PairSymbol("SOL"); got != "sol" {
		t.Errorf("PairSymbol fallback = %q, want sol", got)
	}
}
