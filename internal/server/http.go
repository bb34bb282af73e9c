// Package server exposes the ops HTTP surface: price and position snapshots,
// the trade journal, manual close, health and metrics. Handlers only read
// snapshots or send events; they never mutate engine state directly.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/markremover/futures-oracle/internal/domain"
	"github.com/markremover/futures-oracle/internal/event"
	"github.com/markremover/futures-oracle/internal/feed"
	"github.com/markremover/futures-oracle/internal/ledger"
)

// TradeReader serves the /trades endpoint from the persistent journal so
// concurrent reads never touch the engine-owned window.
type TradeReader interface {
	LoadSince(ctx context.Context, cutoff time.Time) ([]domain.TradeRecord, error)
}

// Server is the ops HTTP server.
type Server struct {
	feed   *feed.Cache
	ledger *ledger.Ledger
	trades TradeReader // nil disables /trades
	send   func(ev any)
	http   *http.Server
}

// New builds the server with its routes.
func New(addr string, fc *feed.Cache, led *ledger.Ledger, trades TradeReader, send func(ev any)) *Server {
	s := &Server{feed: fc, ledger: led, trades: trades, send: send}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /price", s.handlePrice)
	mux.HandleFunc("GET /positions", s.handlePositions)
	mux.HandleFunc("GET /trades", s.handleTrades)
	mux.HandleFunc("POST /close", s.handleClose)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until Shutdown. Blocks; run it in its own goroutine.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", slog.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Response encode failed", slog.Any("error", err))
	}
}

type priceResponse struct {
	Pair      string  `json:"pair"`
	Price     float64 `json:"price,omitempty"`
	Available bool    `json:"available"`
	Error     string  `json:"error,omitempty"`
}

// handlePrice returns the latest cached price. A pair with no data is a soft
// failure: 200 with available=false, so pollers keep polling.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		writeJSON(w, http.StatusBadRequest, priceResponse{Error: "pair query parameter required"})
		return
	}
	normalized := domain.NormalizePair(pair)

	price, ok := s.feed.Latest(normalized)
	if !ok {
		writeJSON(w, http.StatusOK, priceResponse{Pair: normalized, Available: false, Error: "no price data yet"})
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{Pair: normalized, Price: price, Available: true})
}

type positionsResponse struct {
	Positions  []domain.Position `json:"positions"`
	Count      int               `json:"count"`
	BalanceUSD float64           `json:"balance_usd"`
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	snapshot := s.ledger.Snapshot()
	writeJSON(w, http.StatusOK, positionsResponse{
		Positions:  snapshot,
		Count:      len(snapshot),
		BalanceUSD: s.ledger.Balance(),
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if s.trades == nil {
		writeJSON(w, http.StatusOK, map[string]any{"trades": []domain.TradeRecord{}})
		return
	}
	records, err := s.trades.LoadSince(r.Context(), time.Now().Add(-24*time.Hour))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "trade journal unavailable"})
		return
	}
	if records == nil {
		records = []domain.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": records})
}

type closeRequest struct {
	OrderID string `json:"order_id"`
	HitStop bool   `json:"hit_stop"`
}

// handleClose routes the manual close through the engine inbox so the
// mutation happens on the engine goroutine like every other one.
func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_id required"})
		return
	}

	reply := make(chan domain.Decision, 1)
	s.send(event.ManualClose{OrderID: req.OrderID, HitStop: req.HitStop, Reply: reply})

	select {
	case d := <-reply:
		if !d.Allow {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": d.Reason})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "closed", "order_id": req.OrderID})
	case <-time.After(5 * time.Second):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "engine did not respond"})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
