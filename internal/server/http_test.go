package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/markremover/futures-oracle/internal/domain"
	"github.com/markremover/futures-oracle/internal/event"
	"github.com/markremover/futures-oracle/internal/feed"
	"github.com/markremover/futures-oracle/internal/ledger"
)

type fakeTrades struct {
	records []domain.TradeRecord
	err     error
}

func (f *fakeTrades) LoadSince(ctx context.Context, cutoff time.Time) ([]domain.TradeRecord, error) {
	return f.records, f.err
}

type nullExec struct{}

func (nullExec) Name() string { return "null" }
func (nullExec) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.Fill, error) {
	return domain.Fill{OrderID: "x", FilledPrice: 1}, nil
}

func newTestServer(send func(ev any)) (*Server, *feed.Cache) {
	fc := feed.NewCache(5 * time.Minute)
	led := ledger.New(ledger.Config{Mode: domain.ModePaper, InitialBalanceUSD: 1000}, nullExec{}, nil, nil)
	if send == nil {
		send = func(any) {}
	}
	return New(":0", fc, led, &fakeTrades{}, send), fc
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestPrice_NormalizesPerpAndSoftFails(t *testing.T) {
	s, fc := newTestServer(nil)
	fc.Record("ETH-USD", 2500, time.Now())

	rec := do(t, s, http.MethodGet, "/price?pair=ETH-PERP", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp priceResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Pair != "ETH-USD" || !resp.Available || resp.Price != 2500 {
		t.Errorf("resp = %+v", resp)
	}

	// Unknown pair: still 200, available=false.
	rec = do(t, s, http.MethodGet, "/price?pair=XRP-USD", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("soft failure status = %d, want 200", rec.Code)
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Available {
		t.Error("missing pair must report available=false")
	}

	// No pair at all is a client error.
	if rec := do(t, s, http.MethodGet, "/price", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing pair param status = %d, want 400", rec.Code)
	}
}

func TestPositions_Empty(t *testing.T) {
	s, _ := newTestServer(nil)
	rec := do(t, s, http.MethodGet, "/positions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp positionsResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Count != 0 || resp.BalanceUSD != 1000 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClose_RoutesThroughEngine(t *testing.T) {
	var got event.ManualClose
	s, _ := newTestServer(func(ev any) {
		got = ev.(event.ManualClose)
		got.Reply <- domain.Allowed()
	})

	rec := do(t, s, http.MethodPost, "/close", `{"order_id":"abc","hit_stop":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got.OrderID != "abc" || !got.HitStop {
		t.Errorf("event = %+v", got)
	}
}

func TestClose_NotFound(t *testing.T) {
	s, _ := newTestServer(func(ev any) {
		ev.(event.ManualClose).Reply <- domain.Blocked("position abc not found")
	})
	rec := do(t, s, http.MethodPost, "/close", `{"order_id":"abc"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestClose_BadRequest(t *testing.T) {
	s, _ := newTestServer(nil)
	if rec := do(t, s, http.MethodPost, "/close", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTrades_ServedFromJournal(t *testing.T) {
	fc := feed.NewCache(time.Minute)
	led := ledger.New(ledger.Config{Mode: domain.ModePaper, InitialBalanceUSD: 1}, nullExec{}, nil, nil)
	trades := &fakeTrades{records: []domain.TradeRecord{{ID: "t1", Pair: "ETH-USD", Result: domain.ResultWin}}}
	s := New(":0", fc, led, trades, func(any) {})

	rec := do(t, s, http.MethodGet, "/trades", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Trades []domain.TradeRecord `json:"trades"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Trades) != 1 || resp.Trades[0].ID != "t1" {
		t.Errorf("trades = %+v", resp.Trades)
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(nil)
	if rec := do(t, s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
