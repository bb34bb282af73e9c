// Package ledger owns the lifecycle of open positions: open, per-tick
// bracket evaluation, and idempotent close. The lifecycle logic is identical
// for paper and live execution; only the injected venue differs.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/markremover/futures-oracle/internal/domain"
	"github.com/markremover/futures-oracle/internal/infra"
	"github.com/markremover/futures-oracle/internal/sizing"
)

// Publisher delivers outbound notifications. Best-effort: implementations
// must never block the caller.
type Publisher interface {
	Publish(n domain.Notification)
}

// TradeLog is the risk gate's journal surface: the ledger reports trade
// outcomes so the gate can enforce daily limits and cooldowns.
type TradeLog interface {
	RecordOpen(pair string, side domain.Side, now time.Time) string
	RecordClose(id string, result domain.TradeResult, pnlUSD float64, at time.Time)
	NoteStopLoss(pair string, at time.Time)
}

// Config holds ledger policy.
type Config struct {
	Mode              domain.Mode
	InitialBalanceUSD float64 // virtual balance, paper mode only
	ModelTakerFees    bool
	TakerFeeRate      float64 // e.g. 0.0006 for 0.06%
}

// Ledger tracks the active position set. Mutations happen only on the
// engine loop; the mutex exists for external snapshot readers (HTTP).
type Ledger struct {
	mu   sync.RWMutex
	cfg  Config
	exec domain.Execution
	log  TradeLog
	pub  Publisher // nil disables notifications

	positions map[string]*domain.Position // by order id
	recordIDs map[string]string           // order id -> trade record id
	balance   float64
}

// New creates a ledger bound to an execution venue and trade log.
func New(cfg Config, exec domain.Execution, log TradeLog, pub Publisher) *Ledger {
	l := &Ledger{
		cfg:       cfg,
		exec:      exec,
		log:       log,
		pub:       pub,
		positions: make(map[string]*domain.Position),
		recordIDs: make(map[string]string),
		balance:   cfg.InitialBalanceUSD,
	}
	infra.SetBalance(l.balance)
	return l
}

// Open submits the sized bracket to the venue and admits the position. No
// partial state is created on failure.
func (l *Ledger) Open(ctx context.Context, pair string, side domain.Side, price float64, sz sizing.Sizing, now time.Time) (*domain.Position, error) {
	fill, err := l.exec.SubmitOrder(ctx, domain.OrderRequest{
		Pair:        pair,
		Side:        side,
		Contracts:   sz.Contracts,
		StopPrice:   sz.StopPrice,
		TargetPrice: sz.TargetPrice,
	})
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	entry := fill.FilledPrice
	if entry <= 0 {
		// Venue did not report an average fill; mark at the signal price.
		entry = price
	}

	pos := &domain.Position{
		ID:          fill.OrderID,
		Pair:        pair,
		Side:        side,
		EntryPrice:  entry,
		Contracts:   sz.Contracts,
		StopPrice:   sz.StopPrice,
		TargetPrice: sz.TargetPrice,
		RiskUSD:     sz.RiskUSD,
		MarginUSD:   sz.MarginUSD,
		Mode:        l.cfg.Mode,
		OpenedAt:    now,
	}

	l.mu.Lock()
	l.positions[pos.ID] = pos
	if l.cfg.Mode == domain.ModePaper {
		l.balance -= pos.MarginUSD
	}
	if l.log != nil {
		l.recordIDs[pos.ID] = l.log.RecordOpen(pair, side, now)
	}
	openCount := len(l.positions)
	balance := l.balance
	l.mu.Unlock()

	infra.SetOpenPositions(openCount)
	infra.SetBalance(balance)

	slog.Info("Position opened",
		slog.String("id", pos.ID),
		slog.String("pair", pair),
		slog.String("side", string(side)),
		slog.Float64("entry", entry),
		slog.Int64("contracts", sz.Contracts),
		slog.Float64("stop", sz.StopPrice),
		slog.Float64("target", sz.TargetPrice))

	l.publish(domain.Notification{
		Pair:        pair,
		Side:        side,
		Type:        domain.NotifyOpen,
		EntryPrice:  entry,
		StopPrice:   sz.StopPrice,
		TargetPrice: sz.TargetPrice,
		Message:     fmt.Sprintf("Opened %s %s x%d @ %.4f", side, pair, sz.Contracts, entry),
		Timestamp:   now.UnixMilli(),
	})
	return pos, nil
}

// Evaluate checks every open position on the pair against its bracket and
// closes the ones that crossed. Called on each price tick and on the sweep
// timer; a pair with no price is simply skipped by the caller, never closed.
func (l *Ledger) Evaluate(pair string, price float64, now time.Time) {
	l.mu.Lock()
	var done []*domain.Position
	var hitStops []bool
	for _, pos := range l.positions {
		if pos.Pair != pair {
			continue
		}
		switch {
		case pos.HitTarget(price):
			done = append(done, pos)
			hitStops = append(hitStops, false)
		case pos.HitStop(price):
			done = append(done, pos)
			hitStops = append(hitStops, true)
		}
	}
	for _, pos := range done {
		delete(l.positions, pos.ID)
	}
	l.mu.Unlock()

	for i, pos := range done {
		hitStop := hitStops[i]
		result := domain.ResultWin
		if hitStop {
			result = domain.ResultLoss
		}
		l.settle(pos, price, result, hitStop, now)
	}
}

// Close is the explicit/manual removal path. Idempotent: an unknown id is a
// "not found" no-op, never a fault.
func (l *Ledger) Close(orderID string, hitStop bool, exitPrice float64, now time.Time) domain.Decision {
	l.mu.Lock()
	pos, ok := l.positions[orderID]
	if ok {
		delete(l.positions, orderID)
	}
	l.mu.Unlock()

	if !ok {
		return domain.Blocked(fmt.Sprintf("position %s not found", orderID))
	}
	if exitPrice <= 0 {
		exitPrice = pos.EntryPrice
	}
	result := domain.ResultWin
	if hitStop || pos.UnrealizedPnL(exitPrice) < 0 {
		result = domain.ResultLoss
	}
	l.settle(pos, exitPrice, result, hitStop, now)
	return domain.Allowed()
}

// settle books the realized PnL, updates the trade log and emits the close
// report. The position has already left the active set.
func (l *Ledger) settle(pos *domain.Position, exitPrice float64, result domain.TradeResult, hitStop bool, now time.Time) {
	pnl := pos.UnrealizedPnL(exitPrice)
	if l.cfg.ModelTakerFees {
		pnl -= l.cfg.TakerFeeRate * (pos.EntryPrice + exitPrice) * float64(pos.Contracts)
	}

	l.mu.Lock()
	if l.cfg.Mode == domain.ModePaper {
		l.balance += pos.MarginUSD + pnl
	}
	recID := l.recordIDs[pos.ID]
	delete(l.recordIDs, pos.ID)
	openCount := len(l.positions)
	balance := l.balance
	l.mu.Unlock()

	if l.log != nil && recID != "" {
		l.log.RecordClose(recID, result, pnl, now)
	}
	if l.log != nil && hitStop {
		l.log.NoteStopLoss(pos.Pair, now)
	}

	infra.SetOpenPositions(openCount)
	infra.SetBalance(balance)
	infra.ObserveTrade(strings.ToLower(string(result)))

	slog.Info("Position closed",
		slog.String("id", pos.ID),
		slog.String("pair", pos.Pair),
		slog.String("side", string(pos.Side)),
		slog.String("result", string(result)),
		slog.Float64("exit", exitPrice),
		slog.Float64("pnl", pnl))

	l.publish(domain.Notification{
		Pair:        pos.Pair,
		Side:        pos.Side,
		Type:        domain.NotifyClose,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		StopPrice:   pos.StopPrice,
		TargetPrice: pos.TargetPrice,
		PnLUSD:      pnl,
		Result:      result,
		Message:     fmt.Sprintf("Closed %s %s: %s %.2f USD", pos.Side, pos.Pair, result, pnl),
		Timestamp:   now.UnixMilli(),
	})
}

func (l *Ledger) publish(n domain.Notification) {
	if l.pub != nil {
		l.pub.Publish(n)
	}
}

// OpenCount returns the size of the active set.
func (l *Ledger) OpenCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

// HasOpen reports whether the pair already has an open position.
func (l *Ledger) HasOpen(pair string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, pos := range l.positions {
		if pos.Pair == pair {
			return true
		}
	}
	return false
}

// Position looks up an open position by order id.
func (l *Ledger) Position(orderID string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[orderID]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// Balance returns the current virtual balance (paper mode).
func (l *Ledger) Balance() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance
}

// Snapshot returns a copy of the active set for external readers.
func (l *Ledger) Snapshot() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	return out
}
