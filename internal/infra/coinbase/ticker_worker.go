package coinbase

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/markremover/futures-oracle/internal/event"
	"github.com/markremover/futures-oracle/internal/infra"
)

const defaultWSURL = "wss://advanced-trade-ws.coinbase.com"

// tickerMessage represents an Advanced Trade WebSocket ticker event. Prices
// arrive as strings; unparseable ticks are dropped silently.
type tickerMessage struct {
	Channel string `json:"channel"`
	Events  []struct {
		Type    string `json:"type"`
		Tickers []struct {
			ProductID string `json:"product_id"`
			Price     string `json:"price"`
		} `json:"tickers"`
	} `json:"events"`
}

// TickerWorker streams trade prices over the reconnecting WebSocket worker
// and forwards them into the engine as PriceTick events. Ticks carry receipt
// timestamps; exchange timestamps are not trusted for window ordering.
type TickerWorker struct {
	base  *infra.BaseWSWorker
	url   string
	pairs []string
	sink  func(ev any)
}

// NewTickerWorker creates a worker for the given product ids. sink is the
// engine's Send; it must never block.
func NewTickerWorker(url string, pairs []string, sink func(ev any)) *TickerWorker {
	if url == "" {
		url = defaultWSURL
	}
	w := &TickerWorker{
		url:   url,
		pairs: pairs,
		sink:  sink,
	}
	w.base = infra.NewBaseWSWorker(w)
	w.base.OnStateChange = func(connected bool) {
		sink(event.FeedState{Connected: connected})
	}
	return w
}

// ID returns the worker identifier.
func (w *TickerWorker) ID() string { return "COINBASE" }

// GetURL returns the WebSocket endpoint.
func (w *TickerWorker) GetURL() string { return w.url }

// Connect starts the WebSocket connection.
func (w *TickerWorker) Connect(ctx context.Context) error {
	w.base.Start(ctx)
	return nil
}

// Disconnect terminates the connection.
func (w *TickerWorker) Disconnect() {
	w.base.Stop()
}

// OnConnect subscribes to the ticker channel for all configured pairs.
func (w *TickerWorker) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	sub := map[string]any{
		"type":        "subscribe",
		"channel":     "ticker",
		"product_ids": w.pairs,
	}
	b, _ := json.Marshal(sub)
	return w.base.Write(websocket.TextMessage, b)
}

// OnMessage handles incoming ticker updates.
func (w *TickerWorker) OnMessage(ctx context.Context, msg []byte) {
	var decoded tickerMessage
	if err := json.Unmarshal(msg, &decoded); err != nil || decoded.Channel != "ticker" {
		return
	}

	now := time.Now()
	for _, ev := range decoded.Events {
		for _, tick := range ev.Tickers {
			price, err := strconv.ParseFloat(tick.Price, 64)
			if err != nil || price <= 0 || tick.ProductID == "" {
				continue
			}
			w.sink(event.PriceTick{
				Pair:  tick.ProductID,
				Price: price,
				Ts:    now,
			})
		}
	}
}

// OnPing keeps the connection alive with a control-frame ping.
func (w *TickerWorker) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}
