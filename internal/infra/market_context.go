package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultUserAgent is sent on quote requests; the chart API rejects requests
// without a browser-like User-Agent.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Market regimes derived from equity-market quotes.
const (
	RegimeNeutral = "NEUTRAL"
	RegimeBullish = "BULLISH"
	RegimeBearish = "BEARISH"
	RegimeCrash   = "CRASH_WARNING"
)

// Regime change thresholds, percent from previous close.
var (
	crashThreshold   = decimal.NewFromInt(-2)
	bearishThreshold = decimal.NewFromInt(-1)
	bullishThreshold = decimal.NewFromInt(1)
)

// chartResponse represents the quote chart API response.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// MarketContext polls equity-market quotes (QQQ as the broad proxy, MSTR as
// the crypto-correlated proxy) and derives the current regime. The regime is
// cached between polls; Current never does I/O.
type MarketContext struct {
	mu           sync.RWMutex
	regime       string
	pollInterval time.Duration
	apiURL       string // base chart URL, symbol appended
	httpClient   *http.Client
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewMarketContext creates a poller with defaults (60s interval).
func NewMarketContext(apiURL string, pollIntervalSec int) *MarketContext {
	m := &MarketContext{
		regime:       RegimeNeutral,
		pollInterval: 60 * time.Second,
		apiURL:       "https://query1.finance.yahoo.com/v8/finance/chart/",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	if apiURL != "" {
		m.apiURL = apiURL
	}
	if pollIntervalSec > 0 {
		m.pollInterval = time.Duration(pollIntervalSec) * time.Second
	}
	return m
}

// Start begins polling until Stop or context cancellation.
func (m *MarketContext) Start(ctx context.Context) error {
	ctx, m.cancel = context.WithCancel(ctx)

	if err := m.refresh(ctx); err != nil {
		slog.Warn("Initial market context fetch failed", slog.Any("error", err))
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Market context polling stopped")
				return
			case <-ticker.C:
				if err := m.refresh(ctx); err != nil {
					slog.Warn("Market context fetch failed", slog.Any("error", err))
				}
			}
		}
	}()
	return nil
}

// Stop stops the polling.
func (m *MarketContext) Stop() {
	if m.cancel != nil {
		m.cancel()
		m.wg.Wait()
	}
}

// Current returns the cached regime.
func (m *MarketContext) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.regime
}

// refresh fetches both proxies and recomputes the regime. A fetch failure
// keeps the previous regime; a stale opinion beats a missing one.
func (m *MarketContext) refresh(ctx context.Context) error {
	qqq, err := m.fetchChangePct(ctx, "QQQ")
	if err != nil {
		return err
	}
	mstr, err := m.fetchChangePct(ctx, "MSTR")
	if err != nil {
		return err
	}

	regime := classify(qqq, mstr)

	m.mu.Lock()
	old := m.regime
	m.regime = regime
	m.mu.Unlock()

	if old != regime {
		slog.Info("Market regime changed",
			slog.String("regime", regime),
			slog.String("old", old),
			slog.String("qqq_pct", qqq.StringFixed(2)),
			slog.String("mstr_pct", mstr.StringFixed(2)))
	}
	return nil
}

// classify maps proxy day-changes onto a regime. Crash takes priority.
func classify(qqq, mstr decimal.Decimal) string {
	switch {
	case qqq.LessThanOrEqual(crashThreshold) || mstr.LessThanOrEqual(crashThreshold):
		return RegimeCrash
	case qqq.LessThanOrEqual(bearishThreshold):
		return RegimeBearish
	case qqq.GreaterThanOrEqual(bullishThreshold):
		return RegimeBullish
	default:
		return RegimeNeutral
	}
}

func (m *MarketContext) fetchChangePct(ctx context.Context, symbol string) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.apiURL+symbol, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, err
	}

	var data chartResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return decimal.Zero, err
	}
	if data.Chart.Error != nil {
		return decimal.Zero, fmt.Errorf("chart API error: %s - %s", data.Chart.Error.Code, data.Chart.Error.Description)
	}
	if len(data.Chart.Result) == 0 {
		return decimal.Zero, fmt.Errorf("empty chart response for %s", symbol)
	}

	meta := data.Chart.Result[0].Meta
	prev := decimal.NewFromFloat(meta.PreviousClose)
	if prev.IsZero() {
		return decimal.Zero, fmt.Errorf("no previous close for %s", symbol)
	}
	price := decimal.NewFromFloat(meta.RegularMarketPrice)
	return price.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)), nil
}
