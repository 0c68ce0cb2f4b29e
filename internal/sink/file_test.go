package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"solana-pool-monitor/internal/domain"
)

func TestFile_DeliverAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	f, err := NewFile(path)
	if err != nil {
		t.Fatalf("open file sink: %v", err)
	}

	ctx := context.Background()
	if err := f.Deliver(ctx, testEvent("fsig1")); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := f.Deliver(ctx, testEvent("fsig2")); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.Open(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	defer raw.Close()

	var sigs []string
	scanner := bufio.NewScanner(raw)
	for scanner.Scan() {
		var event domain.PoolCreationEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		sigs = append(sigs, event.TxSignature)
	}

	if len(sigs) != 2 || sigs[0] != "fsig1" || sigs[1] != "fsig2" {
		t.Errorf("expected [fsig1 fsig2], got %v", sigs)
	}
}

func TestFile_ReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	ctx := context.Background()

	f1, err := NewFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f1.Deliver(ctx, testEvent("first"))
	f1.Close()

	f2, err := NewFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	f2.Deliver(ctx, testEvent("second"))
	f2.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got := len(splitLines(data)); got != 2 {
		t.Errorf("expected 2 lines after reopen, got %d", got)
	}
}

func splitLines(data []byte) []string {
	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, string(data[start:i]))
			}
			start = i + 1
		}
	}
	return lines
}
