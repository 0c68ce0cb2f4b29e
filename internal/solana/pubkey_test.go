package solana

import (
	"testing"

	"github.com/mr-tron/base58"
)

func TestDecodePubkey(t *testing.T) {
	var raw [32]byte
	raw[0] = 1
	raw[31] = 1
	addr := base58.Encode(raw[:])

	got, err := DecodePubkey(addr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != PubkeyLength {
		t.Errorf("expected %d bytes, got %d", PubkeyLength, len(got))
	}
	if got[0] != 1 || got[31] != 1 {
		t.Errorf("round trip mismatch: %v", got)
	}
}

func TestDecodePubkey_Invalid(t *testing.T) {
	if _, err := DecodePubkey("0OIl"); err == nil {
		t.Error("expected error for invalid base58 characters")
	}
	if _, err := DecodePubkey(base58.Encode([]byte{1, 2, 3})); err == nil {
		t.Error("expected error for a short key")
	}
}

func TestIsValidPubkey(t *testing.T) {
	if !IsValidPubkey("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8") {
		t.Error("expected a real program ID to be valid")
	}
	if IsValidPubkey("tooshort") {
		t.Error("expected a short string to be invalid")
	}
}

func TestIsOnCurve(t *testing.T) {
	// Deployed program IDs come from keypairs, so they are on-curve points.
	program, err := DecodePubkey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !IsOnCurve(program) {
		t.Error("expected a keypair pubkey to be on-curve")
	}

	if IsOnCurve([]byte{1, 2, 3}) {
		t.Error("expected a short slice to be rejected")
	}
}

func TestDerivePDA(t *testing.T) {
	program, err := DecodePubkey("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	seeds := [][]byte{[]byte("amm authority")}

	a := DerivePDA(seeds, program)
	b := DerivePDA(seeds, program)
	if a == "" {
		t.Fatal("derivation found no off-curve bump")
	}
	if a != b {
		t.Errorf("derivation must be deterministic, got %q and %q", a, b)
	}

	// The point of a PDA is that no keypair can exist for it.
	raw, err := DecodePubkey(a)
	if err != nil {
		t.Fatalf("derived address is not a valid pubkey: %v", err)
	}
	if IsOnCurve(raw) {
		t.Error("derived PDA must be off-curve")
	}

	other := DerivePDA([][]byte{[]byte("different seed")}, program)
	if other == a {
		t.Error("different seeds must derive different addresses")
	}
}
