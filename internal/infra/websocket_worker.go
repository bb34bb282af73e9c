package infra

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketHandler supplies the feed-specific behavior for BaseWSWorker.
type WebSocketHandler interface {
	ID() string
	GetURL() string
	OnConnect(ctx context.Context, conn *websocket.Conn) error
	OnMessage(ctx context.Context, msg []byte)
	OnPing(ctx context.Context, conn *websocket.Conn) error
}

// BaseWSWorker keeps one WebSocket session alive: it dials, hands the
// connection to the handler, pumps messages, and redials with backoff when
// the session drops.
type BaseWSWorker struct {
	handler WebSocketHandler

	ReadTimeout  time.Duration
	PingInterval time.Duration

	// OnStateChange fires with true after a successful connect and false when
	// the session drops. Must not block.
	OnStateChange func(connected bool)

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	cancel  context.CancelFunc
	done    sync.WaitGroup
}

// NewBaseWSWorker creates a worker around the handler with default timeouts.
func NewBaseWSWorker(handler WebSocketHandler) *BaseWSWorker {
	return &BaseWSWorker{
		handler:      handler,
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Start launches the connect/read loop. Returns immediately.
func (w *BaseWSWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done.Add(1)
	go func() {
		defer w.done.Done()
		w.run(ctx)
	}()
}

// Stop tears the session down and waits for the loop to exit.
func (w *BaseWSWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.drop()
	w.done.Wait()
}

func (w *BaseWSWorker) run(ctx context.Context) {
	attempt := 0
	for ctx.Err() == nil {
		conn, err := w.dial(ctx)
		if err != nil {
			slog.Warn("WS connect failed", "id", w.handler.ID(), "attempt", attempt, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(ReconnectDelay(attempt)):
			}
			attempt++
			continue
		}
		attempt = 0
		w.pump(ctx, conn)
	}
}

// dial opens a session and runs the handler's subscription step.
func (w *BaseWSWorker) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	header.Set("User-Agent", DefaultUserAgent)

	conn, _, err := dialer.DialContext(ctx, w.handler.GetURL(), header)
	if err != nil {
		return nil, err
	}

	w.connMu.Lock()
	w.conn = conn
	w.connMu.Unlock()

	if err := w.handler.OnConnect(ctx, conn); err != nil {
		w.drop()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	slog.Info("WS connected", "id", w.handler.ID())
	if w.OnStateChange != nil {
		w.OnStateChange(true)
	}
	return conn, nil
}

// pump reads until the session dies, keeping it alive with pings on the side.
func (w *BaseWSWorker) pump(ctx context.Context, conn *websocket.Conn) {
	if w.PingInterval > 0 {
		stop := make(chan struct{})
		defer close(stop)
		go w.pingLoop(ctx, conn, stop)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(w.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("WS read failed", "id", w.handler.ID(), "err", err)
			w.drop()
			return
		}
		w.handler.OnMessage(ctx, msg)
	}
}

func (w *BaseWSWorker) pingLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(w.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := w.handler.OnPing(ctx, conn); err != nil {
				slog.Warn("WS ping failed", "id", w.handler.ID(), "err", err)
				w.drop()
				return
			}
		}
	}
}

// Write sends one frame on the current session. Writes are serialized:
// gorilla allows a single concurrent writer.
func (w *BaseWSWorker) Write(msgType int, data []byte) error {
	w.connMu.Lock()
	conn := w.conn
	w.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("ws not connected")
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return conn.WriteMessage(msgType, data)
}

// drop tears down the current session, if any, and reports the transition.
func (w *BaseWSWorker) drop() {
	w.connMu.Lock()
	conn := w.conn
	w.conn = nil
	w.connMu.Unlock()

	if conn == nil {
		return
	}
	conn.Close()
	if w.OnStateChange != nil {
		w.OnStateChange(false)
	}
}
