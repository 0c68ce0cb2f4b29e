package domain

import "time"

// TokenInfo describes a mint involved in a new pool. Name and symbol come
// from the Metaplex metadata account when available.
type TokenInfo struct {
	Mint     string `json:"mint"`
	Name     string `json:"name,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals int    `json:"decimals"`
}

// PoolCreationEvent is the output entity: exactly one is emitted per distinct
// transaction signature for the lifetime of the process, bounded by the
// configured dedup window.
type PoolCreationEvent struct {
	Sequence    uint64 `json:"sequence"`
	TxSignature string `json:"tx_signature"`
	Slot        int64  `json:"slot"`

	Pool      string `json:"pool"`
	BaseMint  string `json:"base_mint"`
	QuoteMint string `json:"quote_mint"`
	Creator   string `json:"creator"`

	// initialize2 arguments.
	Nonce           uint8  `json:"nonce"`
	OpenTime        int64  `json:"open_time"`
	InitBaseAmount  uint64 `json:"init_base_amount"`
	InitQuoteAmount uint64 `json:"init_quote_amount"`

	// Best-effort enrichment; nil when metadata lookup is disabled or failed.
	BaseToken  *TokenInfo `json:"base_token,omitempty"`
	QuoteToken *TokenInfo `json:"quote_token,omitempty"`

	// BlockTime is the slot time if known, otherwise zero; Timestamp is the
	// time the record arrived on the stream.
	BlockTime time.Time `json:"block_time,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CreatedAt returns the best available creation time: block time when the
// ledger reported one, arrival time otherwise.
func (e *PoolCreationEvent) CreatedAt() time.Time {
	if !e.BlockTime.IsZero() {
		return e.BlockTime
	}
	return e.Timestamp
}
