package execution

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/markremover/futures-oracle/internal/domain"
)

// Venue selection happens exactly once at startup; the ledger receives the
// chosen implementation and never branches on mode again.

// LiveCredentials carries the Advanced Trade API key material.
type LiveCredentials struct {
	RestURL    string
	KeyName    string
	PrivatePEM string
}

// New returns the Execution implementation for the configured mode.
func New(mode domain.Mode, price PriceFunc, creds LiveCredentials) (domain.Execution, error) {
	slog.Info("Initializing execution venue", slog.String("mode", string(mode)))

	switch mode {
	case domain.ModePaper:
		return NewPaper(price), nil

	case domain.ModeLive:
		// Safety latch: real orders need an explicit opt-in beyond config.
		if os.Getenv("CONFIRM_REAL_TRADING") != "true" {
			return nil, fmt.Errorf("live trading requires CONFIRM_REAL_TRADING=true in the environment")
		}
		if creds.KeyName == "" || creds.PrivatePEM == "" {
			return nil, fmt.Errorf("live trading requires Coinbase API credentials")
		}
		slog.Warn("🚨 LIVE trading enabled — real orders will be placed")
		return NewLive(creds.RestURL, creds.KeyName, creds.PrivatePEM), nil

	default:
		return nil, fmt.Errorf("unknown execution mode: %s", mode)
	}
}
