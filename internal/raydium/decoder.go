// Package raydium decodes Raydium AMM instructions out of raw transaction
// records and classifies pool initializations.
package raydium

import (
	"github.com/mr-tron/base58"

	"solana-pool-monitor/internal/domain"
	"solana-pool-monitor/internal/observability"
)

// ProgramIDV4 is the Raydium AMM v4 program ID.
const ProgramIDV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

// WSOL is the Wrapped SOL mint address.
const WSOL = "So11111111111111111111111111111111111111112"

// CandidateInstruction is the decoded view of one instruction invoking the
// target program: resolved account addresses plus raw argument bytes.
type CandidateInstruction struct {
	ProgramID    string
	Discriminant byte
	Accounts     []string
	Data         []byte // full argument bytes, Data[0] is the discriminant
}

// Decoder extracts candidate instructions for a single target program from
// raw records. Decode is total: malformed payloads are counted and skipped,
// never surfaced as errors.
type Decoder struct {
	programID string
}

// NewDecoder creates a decoder filtering for the given program ID.
func NewDecoder(programID string) *Decoder {
	return &Decoder{programID: programID}
}

// Decode returns every instruction of the record that invokes the target
// program. Instructions for other programs are dropped before any account
// resolution or data decoding.
func (d *Decoder) Decode(rec domain.RawRecord) []CandidateInstruction {
	var out []CandidateInstruction

	for _, ix := range rec.Instructions {
		if ix.ProgramIDIndex < 0 || ix.ProgramIDIndex >= len(rec.AccountKeys) {
			observability.RecordDecodeSkip("program_index_out_of_range")
			continue
		}

		programID := rec.AccountKeys[ix.ProgramIDIndex]
		if programID != d.programID {
			continue
		}

		data, err := base58.Decode(ix.Data)
		if err != nil {
			observability.RecordDecodeSkip("bad_data_encoding")
			continue
		}
		if len(data) == 0 {
			observability.RecordDecodeSkip("empty_data")
			continue
		}

		accounts := make([]string, 0, len(ix.Accounts))
		valid := true
		for _, idx := range ix.Accounts {
			if idx < 0 || idx >= len(rec.AccountKeys) {
				valid = false
				break
			}
			accounts = append(accounts, rec.AccountKeys[idx])
		}
		if !valid {
			observability.RecordDecodeSkip("account_index_out_of_range")
			continue
		}

		out = append(out, CandidateInstruction{
			ProgramID:    programID,
			Discriminant: data[0],
			Accounts:     accounts,
			Data:         data,
		})
		observability.RecordInstructionDecoded()
	}

	return out
}
