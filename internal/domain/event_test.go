package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPoolCreationEvent_CreatedAt(t *testing.T) {
	arrival := time.Unix(1700000100, 0)
	block := time.Unix(1700000000, 0)

	e := &PoolCreationEvent{Timestamp: arrival}
	if got := e.CreatedAt(); !got.Equal(arrival) {
		t.Errorf("expected arrival time without block time, got %v", got)
	}

	e.BlockTime = block
	if got := e.CreatedAt(); !got.Equal(block) {
		t.Errorf("expected block time when known, got %v", got)
	}
}

func TestPoolCreationEvent_JSONOmitsEmptyEnrichment(t *testing.T) {
	e := &PoolCreationEvent{
		Sequence:    1,
		TxSignature: "sig",
		Timestamp:   time.Unix(1700000000, 0),
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["base_token"]; ok {
		t.Error("expected base_token to be omitted when nil")
	}
	if m["tx_signature"] != "sig" {
		t.Errorf("expected tx_signature sig, got %v", m["tx_signature"])
	}
}
