package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig configures a single WebSocket subscription connection.
type WSConfig struct {
	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration
	// SubscribeTimeout bounds the wait for subscription confirmation.
	SubscribeTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages. Pings keep a healthy
	// connection inside this window; a stalled one fails the read.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Commitment is the commitment level requested with the subscription.
	Commitment string
	// Buffer is the notification channel capacity; absorbs bursts while the
	// pipeline fetches transactions.
	Buffer int
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		HandshakeTimeout: 10 * time.Second,
		SubscribeTimeout: 30 * time.Second,
		PingInterval:     30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		Commitment:       CommitmentConfirmed,
		Buffer:           10000,
	}
}

// WSConn is one live logsSubscribe connection. It carries exactly one
// subscription and terminates on the first read error; it never reconnects.
type WSConn struct {
	conn   *websocket.Conn
	config WSConfig
	subID  int64

	notifs chan LogNotification
	done   chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup

	errMu sync.Mutex
	err   error

	writeMu sync.Mutex
}

// Compile-time interface check.
var _ LogStream = (*WSConn)(nil)

// wsRequest is a JSON-RPC 2.0 request frame.
type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}

// DialLogs dials the endpoint, issues a logsSubscribe for the filter and
// waits for the subscription confirmation before returning a live stream.
func DialLogs(ctx context.Context, endpoint string, filter LogsFilter, config *WSConfig) (*WSConn, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Commitment == "" {
		cfg.Commitment = CommitmentConfirmed
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultWSConfig().Buffer
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &WSConn{
		conn:   conn,
		config: cfg,
		notifs: make(chan LogNotification, cfg.Buffer),
		done:   make(chan struct{}),
	}

	if err := c.subscribe(filter); err != nil {
		conn.Close()
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// subscribe sends the logsSubscribe request and waits for confirmation.
func (c *WSConn) subscribe(filter LogsFilter) error {
	mentionsFilter := make(map[string]interface{})
	if len(filter.Mentions) > 0 {
		mentionsFilter["mentions"] = filter.Mentions
	} else {
		mentionsFilter["all"] = nil
	}

	const reqID = 1
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			mentionsFilter,
			map[string]string{"commitment": c.config.Commitment},
		},
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	// The node confirms the subscription before sending notifications, so
	// reading frames until the matching response is safe here.
	deadline := time.Now().Add(c.config.SubscribeTimeout)
	for {
		c.conn.SetReadDeadline(deadline)
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read subscribe response: %w", err)
		}

		var resp wsSubscribeResponse
		if err := json.Unmarshal(message, &resp); err != nil || resp.ID != reqID {
			continue
		}
		if resp.Error != nil {
			return fmt.Errorf("subscribe rejected: code=%d msg=%s", resp.Error.Code, resp.Error.Message)
		}
		c.subID = resp.Result
		return nil
	}
}

// Notifications returns the channel of incoming log notifications.
// The channel is closed when the connection terminates.
func (c *WSConn) Notifications() <-chan LogNotification {
	return c.notifs
}

// Err returns the error that terminated the stream, nil while it is live or
// after a clean Close.
func (c *WSConn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *WSConn) setErr(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

// Close closes the WebSocket connection.
func (c *WSConn) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.conn.Close()

	c.wg.Wait()
	return err
}

// readLoop reads messages until the connection dies, then closes the
// notification channel so the consumer observes end-of-stream.
func (c *WSConn) readLoop() {
	defer c.wg.Done()
	defer close(c.notifs)

	for {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.setErr(fmt.Errorf("websocket read: %w", err))
			}
			return
		}

		c.handleMessage(message)
	}
}

// handleMessage parses a frame and forwards log notifications.
func (c *WSConn) handleMessage(message []byte) {
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err != nil {
		return
	}
	if notif.Method != "logsNotification" || notif.Params == nil {
		return
	}
	if notif.Params.Subscription != c.subID {
		return
	}

	value := notif.Params.Result.Value
	logNotif := LogNotification{
		Signature: value.Signature,
		Logs:      value.Logs,
		Err:       value.Err,
	}
	if notif.Params.Result.Context != nil {
		logNotif.Slot = notif.Params.Result.Context.Slot
	}

	// Block until we can send - never drop records. The buffer absorbs
	// bursts; sustained overrun stalls the read and eventually trips the
	// supervisor's idle handling upstream.
	select {
	case c.notifs <- logNotif:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *WSConn) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				// Connection might be dead; the read loop surfaces it.
			}
			c.writeMu.Unlock()
		}
	}
}
