// Package notify delivers outbound notifications to the automation layer.
// Delivery is best-effort and asynchronous; a dead webhook endpoint must
// never slow down or block trading.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/markremover/futures-oracle/internal/domain"
	"github.com/markremover/futures-oracle/internal/infra"
)

// Webhook POSTs notifications to per-pair endpoints: <base>/<symbol>, e.g.
// https://hooks.example/eth for ETH-USD. System reports go to <base>/system.
type Webhook struct {
	baseURL    string
	httpClient *http.Client
}

// NewWebhook creates a notifier. An empty baseURL disables delivery.
func NewWebhook(baseURL string) *Webhook {
	return &Webhook{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Publish delivers the notification in the background.
func (w *Webhook) Publish(n domain.Notification) {
	if w.baseURL == "" {
		return
	}
	go w.deliver(n)
}

func (w *Webhook) deliver(n domain.Notification) {
	path := "system"
	if n.Pair != "" {
		path = domain.PairSymbol(n.Pair)
	}
	url := w.baseURL + "/" + path

	payload, err := json.Marshal(n)
	if err != nil {
		slog.Warn("Webhook marshal failed", slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		slog.Warn("Webhook request build failed", slog.Any("error", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		infra.ObserveWebhookFailure()
		slog.Warn("Webhook delivery failed", slog.String("url", url), slog.Any("error", err))
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// A missing per-pair endpoint usually means the automation for this
		// pair is switched off, not an outage.
		slog.Info("Webhook endpoint not found (automation disabled for pair?)",
			slog.String("url", url), slog.String("type", string(n.Type)))
	case resp.StatusCode >= 300:
		infra.ObserveWebhookFailure()
		slog.Warn("Webhook rejected",
			slog.String("url", url),
			slog.Int("status", resp.StatusCode),
			slog.String("type", string(n.Type)))
	}
}
