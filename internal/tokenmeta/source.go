// Package tokenmeta fetches SPL mint and Metaplex metadata for the tokens of
// a newly created pool. Lookups are best-effort enrichment; the pipeline
// emits events without them when they fail.
package tokenmeta

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"solana-pool-monitor/internal/domain"
	"solana-pool-monitor/internal/solana"
)

// metaplexProgramID is the Metaplex Token Metadata program.
const metaplexProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

// Source fetches token metadata from Solana RPC.
type Source struct {
	rpc solana.RPCClient
}

// NewSource creates an RPC-backed metadata source.
func NewSource(rpc solana.RPCClient) *Source {
	return &Source{rpc: rpc}
}

// Fetch returns token info for a mint: decimals from the SPL mint account,
// name and symbol from the Metaplex metadata account when present.
// Returns nil, nil when the mint account does not exist.
func (s *Source) Fetch(ctx context.Context, mint string) (*domain.TokenInfo, error) {
	info := &domain.TokenInfo{Mint: mint}

	mintAcct, err := s.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("get mint account info: %w", err)
	}
	if mintAcct == nil {
		return nil, nil
	}

	if err := parseMintData(mintAcct.Data, info); err != nil {
		// Still try Metaplex metadata; decimals stay zero.
		_ = err
	}

	if pda := deriveMetadataPDA(mint); pda != "" {
		metaAcct, err := s.rpc.GetAccountInfo(ctx, pda)
		if err == nil && metaAcct != nil {
			parseMetaplexData(metaAcct.Data, info)
		}
	}

	if info.Name == "" {
		info.Name = "Unknown Token " + mint
	}

	return info, nil
}

// parseMintData parses SPL Token Mint account data.
// SPL Token Mint layout (82 bytes):
// - mintAuthority: Option<Pubkey> (36 bytes: 4 + 32)
// - supply: u64 (8 bytes)
// - decimals: u8 (1 byte)
// - isInitialized: bool (1 byte)
// - freezeAuthority: Option<Pubkey> (36 bytes: 4 + 32)
func parseMintData(data string, info *domain.TokenInfo) error {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("decode mint data: %w", err)
	}

	if len(decoded) < 82 {
		return fmt.Errorf("mint data too short: %d", len(decoded))
	}

	// decimals at offset 44, after mintAuthority option and supply
	info.Decimals = int(decoded[44])
	return nil
}

// deriveMetadataPDA derives the Metaplex metadata PDA for a given mint.
// Seeds: ["metadata", metaplex_program_id, mint]
func deriveMetadataPDA(mint string) string {
	mintBytes, err := solana.DecodePubkey(mint)
	if err != nil {
		return ""
	}
	programBytes, err := solana.DecodePubkey(metaplexProgramID)
	if err != nil {
		return ""
	}

	seeds := [][]byte{
		[]byte("metadata"),
		programBytes,
		mintBytes,
	}

	return solana.DerivePDA(seeds, programBytes)
}

// parseMetaplexData parses Metaplex Token Metadata account data.
// Metaplex Metadata layout:
// - key: u8 (1 byte, should be 4 for MetadataV1)
// - updateAuthority: Pubkey (32 bytes)
// - mint: Pubkey (32 bytes)
// - name: String (4 + length bytes, max 32 chars)
// - symbol: String (4 + length bytes, max 10 chars)
// ...and more fields
func parseMetaplexData(data string, info *domain.TokenInfo) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return
	}

	if len(decoded) < 100 {
		return
	}

	// Check metadata key
	if decoded[0] != 4 { // MetadataV1 key
		return
	}

	// Skip: key(1) + updateAuthority(32) + mint(32) = 65 bytes
	offset := 65

	// Parse name (borsh string: 4-byte length + data)
	if offset+4 > len(decoded) {
		return
	}
	nameLen := binary.LittleEndian.Uint32(decoded[offset:])
	offset += 4

	if nameLen > 100 || offset+int(nameLen) > len(decoded) {
		return
	}
	name := strings.TrimRight(string(decoded[offset:offset+int(nameLen)]), "\x00")
	offset += int(nameLen)
	if name != "" {
		info.Name = name
	}

	// Parse symbol
	if offset+4 > len(decoded) {
		return
	}
	symbolLen := binary.LittleEndian.Uint32(decoded[offset:])
	offset += 4

	if symbolLen > 20 || offset+int(symbolLen) > len(decoded) {
		return
	}
	symbol := strings.TrimRight(string(decoded[offset:offset+int(symbolLen)]), "\x00")
	if symbol != "" {
		info.Symbol = symbol
	}
}
