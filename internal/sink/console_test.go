package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"solana-pool-monitor/internal/domain"
)

func TestConsole_DeliverWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	event := testEvent("csig")
	event.Sequence = 3
	if err := c.Deliver(context.Background(), event); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	var decoded domain.PoolCreationEvent
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not a JSON line: %v", err)
	}
	if decoded.TxSignature != "csig" || decoded.Sequence != 3 {
		t.Errorf("unexpected decoded event: %+v", decoded)
	}
	if buf.Bytes()[buf.Len()-1] != '\n' {
		t.Error("expected a trailing newline")
	}
}

func TestConsole_Name(t *testing.T) {
	var buf bytes.Buffer
	if got := NewConsole(&buf).Name(); got != "console" {
		t.Errorf("expected name console, got %s", got)
	}
}
