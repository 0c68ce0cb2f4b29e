package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeNode upgrades the connection, confirms the first logsSubscribe and
// then sends the scripted notifications.
func fakeNode(t *testing.T, notifications []wsNotification, keepOpen bool) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		if req.Method != "logsSubscribe" {
			t.Errorf("expected logsSubscribe, got %s", req.Method)
		}

		if err := c.WriteJSON(wsSubscribeResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  12345,
		}); err != nil {
			return
		}

		for _, notif := range notifications {
			if err := c.WriteJSON(notif); err != nil {
				return
			}
		}

		if !keepOpen {
			return
		}
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func logsNotification(subID int64, slot int64, signature string, logs []string) wsNotification {
	return wsNotification{
		JSONRPC: "2.0",
		Method:  "logsNotification",
		Params: &wsNotificationParams{
			Subscription: subID,
			Result: wsNotificationResult{
				Context: &wsContext{Slot: slot},
				Value:   wsLogsValue{Signature: signature, Logs: logs},
			},
		},
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestDialLogs_SubscribeAndReceive(t *testing.T) {
	server := fakeNode(t, []wsNotification{
		logsNotification(12345, 100, "testsig", []string{"Program log: initialize2"}),
	}, true)
	defer server.Close()

	conn, err := DialLogs(context.Background(), wsURL(server),
		LogsFilter{Mentions: []string{"someprogram"}}, nil)
	if err != nil {
		t.Fatalf("DialLogs: %v", err)
	}
	defer conn.Close()

	select {
	case notif := <-conn.Notifications():
		if notif.Signature != "testsig" {
			t.Errorf("expected signature testsig, got %s", notif.Signature)
		}
		if notif.Slot != 100 {
			t.Errorf("expected slot 100, got %d", notif.Slot)
		}
		if len(notif.Logs) != 1 {
			t.Errorf("expected 1 log line, got %d", len(notif.Logs))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestDialLogs_IgnoresOtherSubscriptions(t *testing.T) {
	server := fakeNode(t, []wsNotification{
		logsNotification(99999, 1, "foreign-sig", nil),
		logsNotification(12345, 2, "mine-sig", nil),
	}, true)
	defer server.Close()

	conn, err := DialLogs(context.Background(), wsURL(server), LogsFilter{}, nil)
	if err != nil {
		t.Fatalf("DialLogs: %v", err)
	}
	defer conn.Close()

	select {
	case notif := <-conn.Notifications():
		if notif.Signature != "mine-sig" {
			t.Errorf("expected only our subscription's records, got %s", notif.Signature)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestDialLogs_StreamEndsOnServerClose(t *testing.T) {
	server := fakeNode(t, nil, false)
	defer server.Close()

	conn, err := DialLogs(context.Background(), wsURL(server), LogsFilter{}, nil)
	if err != nil {
		t.Fatalf("DialLogs: %v", err)
	}
	defer conn.Close()

	select {
	case _, ok := <-conn.Notifications():
		if ok {
			t.Error("expected the notification channel to close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after server disconnect")
	}

	if conn.Err() == nil {
		t.Error("expected a terminating error after an unexpected disconnect")
	}
}

func TestDialLogs_DialFailure(t *testing.T) {
	cfg := DefaultWSConfig()
	cfg.HandshakeTimeout = 500 * time.Millisecond

	_, err := DialLogs(context.Background(), "ws://127.0.0.1:1", LogsFilter{}, &cfg)
	if err == nil {
		t.Fatal("expected dial error for an unreachable endpoint")
	}
}
