package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/markremover/futures-oracle/internal/infra"
)

// AccountSource fetches futures balance and leverage limits from the
// authenticated Advanced Trade API. Callers wrap it in the TTL cache.
type AccountSource struct {
	restURL         string
	creds           Credentials
	httpClient      *http.Client
	limiter         *infra.RateLimiter
	defaultLeverage float64
}

// NewAccountSource creates an authenticated source. defaultLeverage is used
// when the product does not report a leverage limit.
func NewAccountSource(restURL string, creds Credentials, defaultLeverage float64) *AccountSource {
	if defaultLeverage <= 0 {
		defaultLeverage = 10
	}
	return &AccountSource{
		restURL:         restURL,
		creds:           creds,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		limiter:         infra.GetCoinbaseOrderLimiter(),
		defaultLeverage: defaultLeverage,
	}
}

type balanceSummaryResponse struct {
	BalanceSummary struct {
		CFMUSDBalance struct {
			Value string `json:"value"`
		} `json:"cfm_usd_balance"`
		AvailableMargin struct {
			Value string `json:"value"`
		} `json:"available_margin"`
	} `json:"balance_summary"`
}

// FetchBalance returns the available futures margin balance in USD.
func (s *AccountSource) FetchBalance(ctx context.Context) (float64, error) {
	body, err := s.get(ctx, "/api/v3/brokerage/cfm/balance_summary")
	if err != nil {
		return 0, err
	}

	var decoded balanceSummaryResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, fmt.Errorf("decode balance summary: %w", err)
	}

	raw := decoded.BalanceSummary.AvailableMargin.Value
	if raw == "" {
		raw = decoded.BalanceSummary.CFMUSDBalance.Value
	}
	balance, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", raw, err)
	}
	return balance, nil
}

type productResponse struct {
	FutureProductDetails struct {
		PerpetualDetails struct {
			MaxLeverage string `json:"max_leverage"`
		} `json:"perpetual_details"`
	} `json:"future_product_details"`
}

// FetchMaxLeverage returns the leverage limit for a product, falling back to
// the configured default when the product does not report one.
func (s *AccountSource) FetchMaxLeverage(ctx context.Context, pair string) (float64, error) {
	body, err := s.get(ctx, "/api/v3/brokerage/products/"+pair)
	if err != nil {
		return 0, err
	}

	var decoded productResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, fmt.Errorf("decode product: %w", err)
	}
	raw := decoded.FutureProductDetails.PerpetualDetails.MaxLeverage
	if raw == "" {
		return s.defaultLeverage, nil
	}
	lev, err := strconv.ParseFloat(raw, 64)
	if err != nil || lev <= 0 {
		return s.defaultLeverage, nil
	}
	return lev, nil
}

func (s *AccountSource) get(ctx context.Context, path string) ([]byte, error) {
	s.limiter.Wait()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.restURL+path, nil)
	if err != nil {
		return nil, err
	}
	if err := s.creds.Authenticate(req); err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("account endpoint %s status %d", path, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
