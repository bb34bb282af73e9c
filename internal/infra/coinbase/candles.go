package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/markremover/futures-oracle/internal/domain"
	"github.com/markremover/futures-oracle/internal/infra"
)

const defaultMarketURL = "https://api.exchange.coinbase.com"

// CandleClient fetches OHLCV history from the public market-data REST API.
// Calls go through the shared market rate limiter and a circuit breaker so a
// flapping endpoint cannot stall the signal pipeline.
type CandleClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *infra.RateLimiter
	breaker    *infra.Breaker
}

// NewCandleClient creates a client; an empty baseURL selects the production
// endpoint.
func NewCandleClient(baseURL string) *CandleClient {
	if baseURL == "" {
		baseURL = defaultMarketURL
	}
	return &CandleClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    infra.GetCoinbaseMarketLimiter(),
		breaker:    infra.NewBreaker("coinbase-candles"),
	}
}

// FetchCandles returns up to count candles at the granularity, oldest first.
// The wire format is an array of [time, low, high, open, close, volume]
// arrays; rows that do not fit that shape are skipped, not fatal.
func (c *CandleClient) FetchCandles(ctx context.Context, pair string, granularitySec, count int) ([]domain.Candle, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("candle endpoint circuit open")
	}
	c.limiter.Wait()

	url := fmt.Sprintf("%s/products/%s/candles?granularity=%d", c.baseURL, pair, granularitySec)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("candle endpoint status %d for %s", resp.StatusCode, pair)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		c.breaker.RecordFailure()
		return nil, err
	}

	var rows [][]float64
	if err := json.Unmarshal(body, &rows); err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("decode candles: %w", err)
	}
	c.breaker.RecordSuccess()

	candles := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		candles = append(candles, domain.Candle{
			Time:   time.Unix(int64(row[0]), 0),
			Low:    row[1],
			High:   row[2],
			Open:   row[3],
			Close:  row[4],
			Volume: row[5],
		})
	}
	// The API returns newest first.
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })

	if count > 0 && len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	return candles, nil
}
