package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recordingHandler struct {
	url       string
	connects  atomic.Int32
	messages  atomic.Int32
	lastMsgCh chan []byte
}

func newRecordingHandler(url string) *recordingHandler {
	return &recordingHandler{url: url, lastMsgCh: make(chan []byte, 8)}
}

func (h *recordingHandler) GetURL() string { return h.url }
func (h *recordingHandler) ID() string     { return "test-feed" }

func (h *recordingHandler) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	h.connects.Add(1)
	return nil
}

func (h *recordingHandler) OnMessage(ctx context.Context, msg []byte) {
	h.messages.Add(1)
	select {
	case h.lastMsgCh <- msg:
	default:
	}
}

func (h *recordingHandler) OnPing(ctx context.Context, conn *websocket.Conn) error { return nil }

func wsTestServer(t *testing.T, serve func(*websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	return srv, strings.Replace(srv.URL, "http://", "ws://", 1)
}

func TestWSWorker_ConnectAndReceive(t *testing.T) {
	srv, url := wsTestServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"channel":"ticker"}`))
		time.Sleep(100 * time.Millisecond)
	})
	defer srv.Close()

	h := newRecordingHandler(url)
	w := NewBaseWSWorker(h)
	w.ReadTimeout = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	select {
	case msg := <-h.lastMsgCh:
		if string(msg) != `{"channel":"ticker"}` {
			t.Errorf("unexpected message %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	if h.connects.Load() == 0 {
		t.Error("OnConnect never fired")
	}
}

func TestWSWorker_StateChangeCallback(t *testing.T) {
	release := make(chan struct{})
	srv, url := wsTestServer(t, func(conn *websocket.Conn) { <-release })
	defer srv.Close()
	defer close(release)

	h := newRecordingHandler(url)
	w := NewBaseWSWorker(h)

	states := make(chan bool, 4)
	w.OnStateChange = func(connected bool) { states <- connected }

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	select {
	case up := <-states:
		if !up {
			t.Fatal("first state change should report connected")
		}
	case <-time.After(time.Second):
		t.Fatal("no connected callback")
	}

	cancel()
	w.Stop()

	select {
	case up := <-states:
		if up {
			t.Fatal("teardown should report disconnected")
		}
	case <-time.After(time.Second):
		t.Fatal("no disconnected callback")
	}
}

func TestWSWorker_StopDoesNotHang(t *testing.T) {
	release := make(chan struct{})
	srv, url := wsTestServer(t, func(conn *websocket.Conn) { <-release })
	defer srv.Close()
	defer close(release)

	w := NewBaseWSWorker(newRecordingHandler(url))
	w.Start(context.Background())
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestWSWorker_Write(t *testing.T) {
	received := make(chan []byte, 1)
	srv, url := wsTestServer(t, func(conn *websocket.Conn) {
		if _, msg, err := conn.ReadMessage(); err == nil {
			received <- msg
		}
		time.Sleep(100 * time.Millisecond)
	})
	defer srv.Close()

	w := NewBaseWSWorker(newRecordingHandler(url))
	w.Start(context.Background())
	defer w.Stop()
	time.Sleep(100 * time.Millisecond)

	sub := []byte(`{"type":"subscribe","channel":"ticker"}`)
	if err := w.Write(websocket.TextMessage, sub); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case msg := <-received:
		if string(msg) != string(sub) {
			t.Errorf("server got %s, want %s", msg, sub)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received the subscription")
	}
}
