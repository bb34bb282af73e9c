package ledger

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/markremover/futures-oracle/internal/domain"
	"github.com/markremover/futures-oracle/internal/sizing"
)

type fakeExec struct {
	fills  int
	fail   bool
	nextID string
}

func (f *fakeExec) Name() string { return "fake" }

func (f *fakeExec) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.Fill, error) {
	if f.fail {
		return domain.Fill{}, errors.New("venue down")
	}
	f.fills++
	id := f.nextID
	if id == "" {
		id = "order-1"
	}
	return domain.Fill{OrderID: id, FilledPrice: 2500}, nil
}

type fakeLog struct {
	opens     int
	closes    map[string]domain.TradeResult
	pnls      map[string]float64
	stopPairs []string
}

func newFakeLog() *fakeLog {
	return &fakeLog{closes: make(map[string]domain.TradeResult), pnls: make(map[string]float64)}
}

func (f *fakeLog) RecordOpen(pair string, side domain.Side, now time.Time) string {
	f.opens++
	return "rec-1"
}

func (f *fakeLog) RecordClose(id string, result domain.TradeResult, pnl float64, at time.Time) {
	f.closes[id] = result
	f.pnls[id] = pnl
}

func (f *fakeLog) NoteStopLoss(pair string, at time.Time) {
	f.stopPairs = append(f.stopPairs, pair)
}

type capturePub struct{ notes []domain.Notification }

func (c *capturePub) Publish(n domain.Notification) { c.notes = append(c.notes, n) }

func paperLedger(exec domain.Execution, log TradeLog, pub Publisher) *Ledger {
	return New(Config{
		Mode:              domain.ModePaper,
		InitialBalanceUSD: 1000,
	}, exec, log, pub)
}

func ethSizing() sizing.Sizing {
	// Entry ~2500, stop 2470, target 2560, 2 contracts, margin 500.
	return sizing.Sizing{
		Contracts:   2,
		StopPrice:   2470,
		TargetPrice: 2560,
		RiskUSD:     60,
		MarginUSD:   500,
		NotionalUSD: 5000,
	}
}

func TestLedger_OpenDeductsMargin(t *testing.T) {
	exec := &fakeExec{}
	log := newFakeLog()
	l := paperLedger(exec, log, nil)
	now := time.Unix(1700000000, 0)

	pos, err := l.Open(context.Background(), "ETH-USD", domain.SideLong, 2500, ethSizing(), now)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if pos.EntryPrice != 2500 {
		t.Errorf("entry = %v, want fill price 2500", pos.EntryPrice)
	}
	if got := l.Balance(); got != 500 {
		t.Errorf("balance = %v, want 500 after margin deduction", got)
	}
	if l.OpenCount() != 1 || !l.HasOpen("ETH-USD") {
		t.Error("position not admitted to active set")
	}
	if log.opens != 1 {
		t.Errorf("trade log opens = %d, want 1", log.opens)
	}
}

func TestLedger_OpenFailureLeavesNoState(t *testing.T) {
	exec := &fakeExec{fail: true}
	log := newFakeLog()
	l := paperLedger(exec, log, nil)

	if _, err := l.Open(context.Background(), "ETH-USD", domain.SideLong, 2500, ethSizing(), time.Now()); err == nil {
		t.Fatal("expected error from failing venue")
	}
	if l.OpenCount() != 0 || log.opens != 0 || l.Balance() != 1000 {
		t.Error("failed open must not create partial state")
	}
}

func TestLedger_EvaluateTargetWin(t *testing.T) {
	exec := &fakeExec{}
	log := newFakeLog()
	pub := &capturePub{}
	l := paperLedger(exec, log, pub)
	now := time.Unix(1700000000, 0)

	l.Open(context.Background(), "ETH-USD", domain.SideLong, 2500, ethSizing(), now)
	l.Evaluate("ETH-USD", 2560, now.Add(time.Minute))

	if l.OpenCount() != 0 {
		t.Fatal("position should have closed at target")
	}
	if log.closes["rec-1"] != domain.ResultWin {
		t.Errorf("result = %v, want WIN", log.closes["rec-1"])
	}
	// PnL = (2560-2500)*2 = 120; margin returned: 1000 - 500 + 500 + 120.
	if got := l.Balance(); got != 1120 {
		t.Errorf("balance = %v, want 1120", got)
	}
	if len(log.stopPairs) != 0 {
		t.Error("win must not arm the stop-loss cooldown")
	}
	last := pub.notes[len(pub.notes)-1]
	if last.Type != domain.NotifyClose || last.Result != domain.ResultWin {
		t.Errorf("close notification = %+v", last)
	}
}

func TestLedger_EvaluateStopLoss(t *testing.T) {
	exec := &fakeExec{}
	log := newFakeLog()
	l := paperLedger(exec, log, nil)
	now := time.Unix(1700000000, 0)

	l.Open(context.Background(), "ETH-USD", domain.SideLong, 2500, ethSizing(), now)
	l.Evaluate("ETH-USD", 2470, now.Add(time.Minute))

	if l.OpenCount() != 0 {
		t.Fatal("position should have closed at stop")
	}
	if log.closes["rec-1"] != domain.ResultLoss {
		t.Errorf("result = %v, want LOSS", log.closes["rec-1"])
	}
	if len(log.stopPairs) != 1 || log.stopPairs[0] != "ETH-USD" {
		t.Errorf("stop-loss cooldown pairs = %v, want [ETH-USD]", log.stopPairs)
	}
	// PnL = (2470-2500)*2 = -60.
	if got := l.Balance(); got != 940 {
		t.Errorf("balance = %v, want 940", got)
	}
}

func TestLedger_ShortMirrored(t *testing.T) {
	exec := &fakeExec{}
	log := newFakeLog()
	l := paperLedger(exec, log, nil)
	now := time.Unix(1700000000, 0)

	sz := sizing.Sizing{Contracts: 2, StopPrice: 2530, TargetPrice: 2440, MarginUSD: 500}
	l.Open(context.Background(), "ETH-USD", domain.SideShort, 2500, sz, now)

	// Price dropping to target is a short win.
	l.Evaluate("ETH-USD", 2440, now.Add(time.Minute))
	if log.closes["rec-1"] != domain.ResultWin {
		t.Errorf("short at target = %v, want WIN", log.closes["rec-1"])
	}
	// PnL = (2440-2500)*2*(-1) = 120.
	if got := log.pnls["rec-1"]; got != 120 {
		t.Errorf("short pnl = %v, want 120", got)
	}
}

func TestLedger_FeeModeling(t *testing.T) {
	exec := &fakeExec{}
	log := newFakeLog()
	l := New(Config{
		Mode:              domain.ModePaper,
		InitialBalanceUSD: 1000,
		ModelTakerFees:    true,
		TakerFeeRate:      0.0006,
	}, exec, log, nil)
	now := time.Unix(1700000000, 0)

	l.Open(context.Background(), "ETH-USD", domain.SideLong, 2500, ethSizing(), now)
	l.Evaluate("ETH-USD", 2560, now.Add(time.Minute))

	// Gross 120 minus 0.06% * (2500+2560) * 2 = 6.072.
	want := 120 - 0.0006*(2500+2560)*2
	if got := log.pnls["rec-1"]; math.Abs(got-want) > 1e-9 {
		t.Errorf("net pnl = %v, want %v", got, want)
	}
}

func TestLedger_IdempotentClose(t *testing.T) {
	exec := &fakeExec{}
	log := newFakeLog()
	l := paperLedger(exec, log, nil)
	now := time.Unix(1700000000, 0)

	pos, _ := l.Open(context.Background(), "ETH-USD", domain.SideLong, 2500, ethSizing(), now)

	if d := l.Close(pos.ID, true, 2480, now.Add(time.Minute)); !d.Allow {
		t.Fatalf("first close rejected: %s", d.Reason)
	}
	if l.OpenCount() != 0 {
		t.Fatal("active set should be empty")
	}

	d := l.Close(pos.ID, true, 2480, now.Add(2*time.Minute))
	if d.Allow {
		t.Fatal("second close must report not found")
	}
	if d.Reason == "" {
		t.Error("second close should carry a not-found reason")
	}
	if l.OpenCount() != 0 {
		t.Error("active set size must be unchanged by the duplicate close")
	}
}

func TestLedger_EvaluateOtherPairUntouched(t *testing.T) {
	exec := &fakeExec{}
	log := newFakeLog()
	l := paperLedger(exec, log, nil)
	now := time.Unix(1700000000, 0)

	l.Open(context.Background(), "ETH-USD", domain.SideLong, 2500, ethSizing(), now)
	l.Evaluate("SOL-USD", 1, now)

	if l.OpenCount() != 1 {
		t.Error("evaluation of an unrelated pair must not touch the position")
	}
}
