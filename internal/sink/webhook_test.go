package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"solana-pool-monitor/internal/domain"
)

func TestWebhook_Deliver(t *testing.T) {
	var received *domain.PoolCreationEvent
	var contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, 5*time.Second)

	event := testEvent("whsig")
	event.Sequence = 7
	if err := wh.Deliver(context.Background(), event); err != nil {
		t.Fatalf("unexpected delivery error: %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("expected application/json content type, got %q", contentType)
	}
	if received == nil || received.TxSignature != "whsig" || received.Sequence != 7 {
		t.Errorf("unexpected received event: %+v", received)
	}
}

func TestWebhook_Deliver_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, 5*time.Second)

	err := wh.Deliver(context.Background(), testEvent("whsig"))
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("expected status code in error, got %v", err)
	}
}

func TestWebhook_Name(t *testing.T) {
	if got := NewWebhook("http://localhost", 0).Name(); got != "webhook" {
		t.Errorf("expected name webhook, got %s", got)
	}
}
