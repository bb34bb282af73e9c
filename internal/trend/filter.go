// Package trend gates long entries on higher-timeframe structure: price must
// hold above the 200-period SMA on at least one of the 1h/4h granularities.
package trend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/markremover/futures-oracle/internal/domain"
	"github.com/markremover/futures-oracle/internal/indicator"
)

// CandleSource fetches recent candles for a pair at a fixed granularity.
type CandleSource interface {
	FetchCandles(ctx context.Context, pair string, granularitySec, count int) ([]domain.Candle, error)
}

// Config holds the filter parameters.
type Config struct {
	SMAPeriod    int           // 200
	FetchTimeout time.Duration // per-granularity candle fetch budget
}

// Filter evaluates the long-side structure check. Stateless between calls.
type Filter struct {
	cfg    Config
	source CandleSource
}

// NewFilter creates a filter over the candle source.
func NewFilter(cfg Config, source CandleSource) *Filter {
	if cfg.SMAPeriod <= 0 {
		cfg.SMAPeriod = 200
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	return &Filter{cfg: cfg, source: source}
}

var granularities = []int{3600, 14400}

// LongBlocked reports whether a long entry must be blocked. The entry is
// blocked when price sits below the SMA on every granularity, and on any
// fetch failure: no data means no long. Shorts are never routed through this
// filter; a falling market is exactly when the short signals fire.
func (f *Filter) LongBlocked(ctx context.Context, pair string, price float64) domain.Decision {
	for _, gran := range granularities {
		above, err := f.aboveSMA(ctx, pair, gran, price)
		if err != nil {
			slog.Warn("Trend data unavailable, blocking long",
				slog.String("pair", pair),
				slog.Int("granularity", gran),
				slog.Any("error", err))
			return domain.Blocked(fmt.Sprintf("Trend data unavailable for %s", pair))
		}
		if above {
			return domain.Allowed()
		}
	}
	return domain.Blocked(fmt.Sprintf("Below SMA(%d) on all timeframes for %s", f.cfg.SMAPeriod, pair))
}

func (f *Filter) aboveSMA(ctx context.Context, pair string, granularitySec int, price float64) (bool, error) {
	fctx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	candles, err := f.source.FetchCandles(fctx, pair, granularitySec, f.cfg.SMAPeriod+1)
	if err != nil {
		return false, err
	}
	if len(candles) == 0 {
		return false, fmt.Errorf("no candles for %s@%ds", pair, granularitySec)
	}
	sma := indicator.SMA(domain.Closes(candles), f.cfg.SMAPeriod)
	return price > sma, nil
}
