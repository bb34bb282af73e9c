package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/markremover/futures-oracle/internal/domain"
)

func TestWebhook_DeliversToPairEndpoint(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL + "/")
	wh.deliver(domain.Notification{
		Pair:       "ETH-USD",
		Side:       domain.SideLong,
		Type:       domain.NotifyOpen,
		EntryPrice: 2500,
		Timestamp:  1700000000000,
	})

	if gotPath != "/eth" {
		t.Errorf("path = %q, want /eth", gotPath)
	}
	var n domain.Notification
	if err := json.Unmarshal(gotBody, &n); err != nil {
		t.Fatalf("body not json: %v", err)
	}
	if n.Type != domain.NotifyOpen || n.EntryPrice != 2500 {
		t.Errorf("payload = %+v", n)
	}
}

func TestWebhook_SystemReportsGoToSystemPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL)
	wh.deliver(domain.Notification{Type: domain.NotifySystem, Message: "started"})
	if gotPath != "/system" {
		t.Errorf("path = %q, want /system", gotPath)
	}
}

func TestWebhook_DisabledWithoutBaseURL(t *testing.T) {
	wh := NewWebhook("")
	// Must be a no-op, not a panic or a network attempt.
	wh.Publish(domain.Notification{Pair: "ETH-USD", Type: domain.NotifyClose})
}

func TestWebhook_FailuresAreSoft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL)
	// Must log and return, never propagate.
	wh.deliver(domain.Notification{Pair: "ETH-USD", Type: domain.NotifyClose})
}
