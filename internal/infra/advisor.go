package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/markremover/futures-oracle/internal/domain"
)

// AdvisorClient talks to the external advisory oracle. The oracle is an
// opaque service: any in-range verdict is accepted as-is, anything malformed
// is an error the caller degrades to "no opinion".
type AdvisorClient struct {
	url        string
	httpClient *http.Client
}

// NewAdvisorClient creates a client for the given endpoint.
func NewAdvisorClient(url string) *AdvisorClient {
	return &AdvisorClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Analyze posts the snapshot and returns the oracle's verdict.
func (c *AdvisorClient) Analyze(ctx context.Context, snap domain.MarketSnapshot) (domain.Verdict, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return domain.Verdict{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return domain.Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Verdict{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Verdict{}, fmt.Errorf("advisor returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Verdict{}, err
	}

	var verdict domain.Verdict
	if err := json.Unmarshal(body, &verdict); err != nil {
		return domain.Verdict{}, fmt.Errorf("malformed verdict: %w", err)
	}

	verdict.Signal = strings.ToUpper(strings.TrimSpace(verdict.Signal))
	switch verdict.Signal {
	case "BUY", "SELL", "HOLD":
	default:
		return domain.Verdict{}, fmt.Errorf("unknown advisor signal %q", verdict.Signal)
	}
	if verdict.Confidence < 0 {
		verdict.Confidence = 0
	}
	if verdict.Confidence > 100 {
		verdict.Confidence = 100
	}
	return verdict, nil
}
