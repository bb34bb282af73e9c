// Package engine runs the signal monitor: a single goroutine that consumes
// the event inbox and owns every state mutation. Workers (feed, HTTP, timers)
// only send events; nothing else touches the gate, ledger or feed writers.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/markremover/futures-oracle/internal/account"
	"github.com/markremover/futures-oracle/internal/domain"
	"github.com/markremover/futures-oracle/internal/event"
	"github.com/markremover/futures-oracle/internal/feed"
	"github.com/markremover/futures-oracle/internal/indicator"
	"github.com/markremover/futures-oracle/internal/infra"
	"github.com/markremover/futures-oracle/internal/ledger"
	"github.com/markremover/futures-oracle/internal/risk"
	"github.com/markremover/futures-oracle/internal/sizing"
	"github.com/markremover/futures-oracle/internal/trend"
)

// Sentiment reports the current broad-market regime. Implementations cache
// internally; Current never blocks.
type Sentiment interface {
	Current() string
}

// Market regimes as reported by the sentiment provider.
const (
	SentimentBearish = "BEARISH"
	SentimentCrash   = "CRASH_WARNING"
)

// Advisor is the optional advisory oracle. Any error or malformed verdict
// degrades to "no opinion"; the technical pipeline never waits on it beyond
// the fetch timeout.
type Advisor interface {
	Analyze(ctx context.Context, snap domain.MarketSnapshot) (domain.Verdict, error)
}

// Config holds the monitor's signal policy.
type Config struct {
	VelocityThresholdPct float64       // default trigger, e.g. 0.8
	HighVolThresholdPct  float64       // trigger for HighVolPairs, e.g. 1.2
	HighVolPairs         []string      // pairs that need the wider trigger
	SentimentRelaxPct    float64       // threshold relief on bearish drops, e.g. 0.3
	MinThresholdPct      float64       // relief floor, e.g. 0.5
	AlertCooldown        time.Duration // per-pair debounce, 3h
	SweepInterval        time.Duration // bracket sweep cadence, 3s
	ATRGranularitySec    int           // candle granularity for ATR, 3600
	ATRPeriod            int           // 14
	FetchTimeout         time.Duration // per external call, 5s
	AdvisorMinConfidence float64       // veto only at or above this, 74
	InboxSize            int
}

// Monitor is the orchestrator. All methods except Send and Run's internals
// run on the engine goroutine.
type Monitor struct {
	cfg       Config
	feed      *feed.Cache
	ledger    *ledger.Ledger
	gate      *risk.Gate
	sizer     *sizing.Sizer
	trend     *trend.Filter
	candles   trend.CandleSource
	account   *account.Cache
	sentiment Sentiment        // nil: always neutral
	advisor   Advisor          // nil: no advisory veto
	pub       ledger.Publisher // nil: no system reports

	inbox   chan any
	now     func() time.Time
	highVol map[string]bool
	lastDay string // UTC date of the last day-roll
}

// New wires the monitor. Sentiment, advisor and pub may be nil.
func New(cfg Config, fc *feed.Cache, led *ledger.Ledger, gate *risk.Gate, sizer *sizing.Sizer, tf *trend.Filter, candles trend.CandleSource, acct *account.Cache, sentiment Sentiment, advisor Advisor, pub ledger.Publisher) *Monitor {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 3 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 1024
	}
	hv := make(map[string]bool, len(cfg.HighVolPairs))
	for _, p := range cfg.HighVolPairs {
		hv[p] = true
	}
	return &Monitor{
		cfg:       cfg,
		feed:      fc,
		ledger:    led,
		gate:      gate,
		sizer:     sizer,
		trend:     tf,
		candles:   candles,
		account:   acct,
		sentiment: sentiment,
		advisor:   advisor,
		pub:       pub,
		inbox:     make(chan any, cfg.InboxSize),
		now:       time.Now,
		highVol:   hv,
	}
}

// Send delivers an event to the inbox without ever blocking the caller. When
// the inbox is full the oldest event is dropped to make room; a stale tick is
// worth less than a fresh one.
func (m *Monitor) Send(ev any) {
	select {
	case m.inbox <- ev:
		return
	default:
	}
	select {
	case <-m.inbox:
		slog.Warn("Engine inbox full, dropped oldest event")
	default:
	}
	select {
	case m.inbox <- ev:
	default:
		slog.Warn("Engine inbox full, event discarded")
	}
}

// Run consumes the inbox until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	sweep := time.NewTicker(m.cfg.SweepInterval)
	defer sweep.Stop()

	m.lastDay = m.now().UTC().Format("2006-01-02")
	slog.Info("Signal monitor started", slog.Duration("sweep", m.cfg.SweepInterval))

	for {
		select {
		case <-ctx.Done():
			slog.Info("Signal monitor stopped")
			return
		case ev := <-m.inbox:
			m.dispatch(ctx, ev)
		case <-sweep.C:
			now := m.now()
			m.sweep(now)
			m.rollDay(now)
		}
	}
}

func (m *Monitor) dispatch(ctx context.Context, ev any) {
	switch e := ev.(type) {
	case event.PriceTick:
		m.handleTick(ctx, e)
	case event.Sweep:
		m.sweep(e.Ts)
	case event.ManualClose:
		m.handleManualClose(e)
	case event.FeedState:
		infra.SetFeedConnected(e.Connected)
		slog.Info("Feed connectivity changed", slog.Bool("connected", e.Connected))
	default:
		slog.Warn("Unknown engine event", slog.Any("event", ev))
	}
}

// handleTick runs the full pipeline for one price observation. Any rejection
// short-circuits; failures on this pair never touch other pairs.
func (m *Monitor) handleTick(ctx context.Context, t event.PriceTick) {
	m.feed.Record(t.Pair, t.Price, t.Ts)
	m.ledger.Evaluate(t.Pair, t.Price, t.Ts)

	oldest, ok := m.feed.OldestInWindow(t.Pair)
	if !ok || m.feed.Count(t.Pair) < 2 {
		return
	}
	velocity := indicator.VelocityPct(oldest.Price, t.Price)
	threshold := m.threshold(t.Pair, velocity)
	if math.Abs(velocity) < threshold {
		return
	}
	if !m.gate.Debounce(t.Pair, m.cfg.AlertCooldown, t.Ts) {
		return
	}

	side := domain.SideLong
	if velocity < 0 {
		side = domain.SideShort
	}
	infra.ObserveSignal(t.Pair, "triggered")
	slog.Info("Velocity signal",
		slog.String("pair", t.Pair),
		slog.String("side", string(side)),
		slog.Float64("velocity_pct", velocity),
		slog.Float64("threshold_pct", threshold),
		slog.Float64("price", t.Price))

	if m.ledger.HasOpen(t.Pair) {
		m.reject(t.Pair, "Position already open")
		return
	}
	if d := m.gate.CanOpenPosition(t.Pair, m.ledger.OpenCount(), t.Ts); !d.Allow {
		m.reject(t.Pair, d.Reason)
		return
	}
	if side == domain.SideLong {
		if d := m.trend.LongBlocked(ctx, t.Pair, t.Price); !d.Allow {
			m.reject(t.Pair, d.Reason)
			return
		}
	}
	if reason, vetoed := m.advisorVeto(ctx, t.Pair, t.Price, velocity, side); vetoed {
		m.reject(t.Pair, reason)
		return
	}

	balance, leverage, err := m.accountState(ctx, t.Pair)
	if err != nil {
		slog.Warn("Account state unavailable, skipping cycle", slog.String("pair", t.Pair), slog.Any("error", err))
		return
	}
	atr, err := m.fetchATR(ctx, t.Pair)
	if err != nil || atr <= 0 {
		m.reject(t.Pair, "ATR unavailable")
		return
	}

	// The fetches above took real time; re-check the gate and the active set
	// before committing so two near-simultaneous signals cannot both pass.
	now := m.now()
	if m.ledger.HasOpen(t.Pair) {
		m.reject(t.Pair, "Position already open")
		return
	}
	if d := m.gate.CanOpenPosition(t.Pair, m.ledger.OpenCount(), now); !d.Allow {
		m.reject(t.Pair, d.Reason)
		return
	}

	price := t.Price
	if latest, ok := m.feed.Latest(t.Pair); ok {
		price = latest
	}
	sz, d := m.sizer.Size(t.Pair, side, price, atr, balance, leverage)
	if !d.Allow {
		m.reject(t.Pair, d.Reason)
		return
	}

	octx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()
	if _, err := m.ledger.Open(octx, t.Pair, side, price, sz, now); err != nil {
		slog.Error("Open failed", slog.String("pair", t.Pair), slog.Any("error", err))
		infra.ObserveSignal(t.Pair, "failed")
		return
	}
	infra.ObserveSignal(t.Pair, "opened")
}

// threshold picks the velocity trigger for the pair. Bearish or crash
// sentiment relaxes the trigger for downward moves only, floored at the
// configured minimum.
func (m *Monitor) threshold(pair string, velocity float64) float64 {
	th := m.cfg.VelocityThresholdPct
	if m.highVol[pair] {
		th = m.cfg.HighVolThresholdPct
	}
	if velocity < 0 && m.sentiment != nil {
		switch m.sentiment.Current() {
		case SentimentBearish, SentimentCrash:
			th -= m.cfg.SentimentRelaxPct
			if th < m.cfg.MinThresholdPct {
				th = m.cfg.MinThresholdPct
			}
		}
	}
	return th
}

// advisorVeto asks the advisory oracle for a second opinion. Only a confident
// contrary verdict vetoes; errors, HOLDs and low confidence all pass.
func (m *Monitor) advisorVeto(ctx context.Context, pair string, price, velocity float64, side domain.Side) (string, bool) {
	if m.advisor == nil {
		return "", false
	}
	snap := domain.MarketSnapshot{Pair: pair, Price: price, VelocityPct: velocity, Side: side}
	if m.sentiment != nil {
		snap.Sentiment = m.sentiment.Current()
	}

	actx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()
	verdict, err := m.advisor.Analyze(actx, snap)
	if err != nil {
		slog.Warn("Advisor unavailable", slog.String("pair", pair), slog.Any("error", err))
		return "", false
	}
	if verdict.Confidence < m.cfg.AdvisorMinConfidence {
		return "", false
	}
	contrary := (side == domain.SideLong && verdict.Signal == "SELL") ||
		(side == domain.SideShort && verdict.Signal == "BUY")
	if !contrary {
		return "", false
	}
	slog.Info("Advisor veto",
		slog.String("pair", pair),
		slog.String("signal", verdict.Signal),
		slog.Float64("confidence", verdict.Confidence),
		slog.String("reasoning", verdict.Reasoning))
	return "Advisor veto: confident " + verdict.Signal, true
}

func (m *Monitor) accountState(ctx context.Context, pair string) (balance, leverage float64, err error) {
	actx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()
	if balance, err = m.account.Balance(actx); err != nil {
		return 0, 0, err
	}
	if leverage, err = m.account.MaxLeverage(actx, pair); err != nil {
		return 0, 0, err
	}
	return balance, leverage, nil
}

func (m *Monitor) fetchATR(ctx context.Context, pair string) (float64, error) {
	fctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()
	candles, err := m.candles.FetchCandles(fctx, pair, m.cfg.ATRGranularitySec, m.cfg.ATRPeriod*2)
	if err != nil {
		return 0, err
	}
	return indicator.ATR(candles, m.cfg.ATRPeriod), nil
}

func (m *Monitor) reject(pair, reason string) {
	infra.ObserveSignal(pair, "blocked")
	slog.Info("Signal blocked", slog.String("pair", pair), slog.String("reason", reason))
}

// sweep re-evaluates every pair's open positions at the latest cached price.
// Pairs with no cached price are skipped, never force-closed.
func (m *Monitor) sweep(now time.Time) {
	for _, pair := range m.feed.Pairs() {
		if price, ok := m.feed.Latest(pair); ok {
			m.ledger.Evaluate(pair, price, now)
		}
	}
}

// rollDay prunes the trade window and emits the daily summary when the UTC
// date changes.
func (m *Monitor) rollDay(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if day == m.lastDay {
		return
	}
	m.lastDay = day

	wins, losses, pnl := m.gate.Summary()
	m.gate.Prune(now)
	slog.Info("Daily report",
		slog.String("day", day),
		slog.Int("wins", wins),
		slog.Int("losses", losses),
		slog.Float64("pnl", pnl),
		slog.Float64("balance", m.ledger.Balance()))
	if m.pub != nil {
		m.pub.Publish(domain.Notification{
			Type: domain.NotifySystem,
			Message: fmt.Sprintf("Daily report %s: %dW/%dL, pnl %.2f USD, balance %.2f USD",
				day, wins, losses, pnl, m.ledger.Balance()),
			Timestamp: now.UnixMilli(),
		})
	}
}

func (m *Monitor) handleManualClose(ev event.ManualClose) {
	exit := 0.0
	if pos, ok := m.ledger.Position(ev.OrderID); ok {
		if price, ok := m.feed.Latest(pos.Pair); ok {
			exit = price
		}
	}
	d := m.ledger.Close(ev.OrderID, ev.HitStop, exit, m.now())
	if ev.Reply != nil {
		ev.Reply <- d
	}
}
