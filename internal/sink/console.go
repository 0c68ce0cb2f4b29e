package sink

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"solana-pool-monitor/internal/domain"
)

// Console writes one JSON line per event to a writer, typically stdout.
type Console struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewConsole creates a console sink writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{enc: json.NewEncoder(w)}
}

// Compile-time interface check.
var _ Sink = (*Console)(nil)

// Name identifies the sink.
func (c *Console) Name() string { return "console" }

// Deliver writes the event as a single JSON line.
func (c *Console) Deliver(_ context.Context, event *domain.PoolCreationEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Encode(event)
}
