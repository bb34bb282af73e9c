// Package risk is the admission-control layer in front of the ledger:
// rolling 24h trade limits, post-loss cooldowns and signal debouncing.
// All checks are advisory gates returning structured reasons, never errors.
package risk

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/markremover/futures-oracle/internal/domain"
)

const recordWindow = 24 * time.Hour

// Journal persists trade records beyond process lifetime. The in-memory
// window stays authoritative; journal failures are soft.
type Journal interface {
	Insert(rec domain.TradeRecord) error
	MarkClosed(id string, result domain.TradeResult, pnlUSD float64, at time.Time) error
}

// Config holds the gate's static limits.
type Config struct {
	MaxOpenPositions int           // global concurrent cap
	MaxTradesPerDay  int           // per pair, rolling 24h
	LossCooldown     time.Duration // after a loss / stop-loss hit
}

// Gate tracks per-pair risk state. It is mutated only by the engine loop,
// so no locking is required.
type Gate struct {
	cfg     Config
	journal Journal // nil disables persistence

	records   []domain.TradeRecord
	lastAlert map[string]time.Time
	lastStop  map[string]time.Time
}

// NewGate creates a gate with an optional journal.
func NewGate(cfg Config, journal Journal) *Gate {
	return &Gate{
		cfg:       cfg,
		journal:   journal,
		lastAlert: make(map[string]time.Time),
		lastStop:  make(map[string]time.Time),
	}
}

// Seed reloads the trailing trade window, typically from the journal at
// startup so a restart does not reset the daily limits. Loss timestamps are
// re-derived so cooldowns survive too.
func (g *Gate) Seed(records []domain.TradeRecord) {
	g.records = append(g.records[:0], records...)
	for _, rec := range records {
		if rec.Result == domain.ResultLoss && rec.ClosedAt.After(g.lastStop[rec.Pair]) {
			g.lastStop[rec.Pair] = rec.ClosedAt
		}
	}
}

// CanTradeToday enforces the per-pair rolling 24h limit plus the
// second-chance rule: after one losing trade the pair must cool down before
// its second attempt.
func (g *Gate) CanTradeToday(pair string, now time.Time) domain.Decision {
	var count int
	var lastLoss time.Time
	cutoff := now.Add(-recordWindow)
	for i := range g.records {
		rec := &g.records[i]
		if rec.Pair != pair || rec.OpenedAt.Before(cutoff) {
			continue
		}
		count++
		if rec.Result == domain.ResultLoss && rec.ClosedAt.After(lastLoss) {
			lastLoss = rec.ClosedAt
		}
	}

	if count >= g.cfg.MaxTradesPerDay {
		return domain.Blocked(fmt.Sprintf("Daily limit reached (%d/%d) for %s", count, g.cfg.MaxTradesPerDay, pair))
	}
	if count == 1 && !lastLoss.IsZero() {
		// Boundary is inclusive: trading resumes at exactly lastLoss+cooldown.
		if now.Sub(lastLoss) < g.cfg.LossCooldown {
			remaining := g.cfg.LossCooldown - now.Sub(lastLoss)
			return domain.Blocked(fmt.Sprintf("Post-loss cooldown for %s (%s remaining)", pair, remaining.Round(time.Minute)))
		}
	}
	return domain.Allowed()
}

// CanOpenPosition composes CanTradeToday with the global open-position cap
// and the per-pair stop-loss cooldown.
func (g *Gate) CanOpenPosition(pair string, openCount int, now time.Time) domain.Decision {
	if openCount >= g.cfg.MaxOpenPositions {
		return domain.Blocked(fmt.Sprintf("Portfolio full (%d/%d)", openCount, g.cfg.MaxOpenPositions))
	}
	if last, ok := g.lastStop[pair]; ok && now.Sub(last) < g.cfg.LossCooldown {
		remaining := g.cfg.LossCooldown - now.Sub(last)
		return domain.Blocked(fmt.Sprintf("Stop-loss cooldown for %s (%s remaining)", pair, remaining.Round(time.Minute)))
	}
	return g.CanTradeToday(pair, now)
}

// Debounce is the generic last-alert gate used by the velocity monitor. It
// returns true (and arms the timer) when the pair may fire; false while the
// previous alert is still cooling down.
func (g *Gate) Debounce(pair string, cooldown time.Duration, now time.Time) bool {
	if last, ok := g.lastAlert[pair]; ok && now.Sub(last) < cooldown {
		return false
	}
	g.lastAlert[pair] = now
	return true
}

// RecordOpen appends a PENDING record and returns its id.
func (g *Gate) RecordOpen(pair string, side domain.Side, now time.Time) string {
	rec := domain.TradeRecord{
		ID:       uuid.New().String(),
		Pair:     pair,
		Side:     side,
		OpenedAt: now,
		Result:   domain.ResultPending,
	}
	g.records = append(g.records, rec)
	if g.journal != nil {
		if err := g.journal.Insert(rec); err != nil {
			slog.Warn("Trade journal insert failed", slog.String("pair", pair), slog.Any("error", err))
		}
	}
	return rec.ID
}

// RecordClose marks a pending record WIN or LOSS.
func (g *Gate) RecordClose(id string, result domain.TradeResult, pnlUSD float64, at time.Time) {
	for i := range g.records {
		if g.records[i].ID != id {
			continue
		}
		g.records[i].Result = result
		g.records[i].PnLUSD = pnlUSD
		g.records[i].ClosedAt = at
		break
	}
	if g.journal != nil {
		if err := g.journal.MarkClosed(id, result, pnlUSD, at); err != nil {
			slog.Warn("Trade journal update failed", slog.String("id", id), slog.Any("error", err))
		}
	}
}

// NoteStopLoss arms the per-pair cooldown after a stop-loss hit.
func (g *Gate) NoteStopLoss(pair string, at time.Time) {
	g.lastStop[pair] = at
}

// Prune drops records that left the rolling window.
func (g *Gate) Prune(now time.Time) {
	cutoff := now.Add(-recordWindow)
	kept := g.records[:0]
	for _, rec := range g.records {
		if !rec.OpenedAt.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	g.records = kept
}

// Summary aggregates the current window for the daily report log.
func (g *Gate) Summary() (wins, losses int, totalPnL float64) {
	for i := range g.records {
		switch g.records[i].Result {
		case domain.ResultWin:
			wins++
		case domain.ResultLoss:
			losses++
		default:
			continue
		}
		totalPnL += g.records[i].PnLUSD
	}
	return wins, losses, totalPnL
}

// Records returns a copy of the current window, oldest first. Engine-loop
// only; concurrent readers go through the journal instead.
func (g *Gate) Records() []domain.TradeRecord {
	out := make([]domain.TradeRecord, len(g.records))
	copy(out, g.records)
	return out
}
