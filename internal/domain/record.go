package domain

import (
	"time"

	"solana-pool-monitor/internal/solana"
)

// RawRecord is one transaction observed on the log stream, enriched with the
// compiled message fetched over RPC. Immutable once built; each pipeline
// stage reads it and moves on.
type RawRecord struct {
	Signature    string
	Slot         int64
	Logs         []string
	AccountKeys  []string
	Instructions []solana.Instruction
	BlockTime    int64 // Unix seconds, 0 if unknown
	ReceivedAt   time.Time
}
