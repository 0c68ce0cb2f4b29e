package raydium

import (
	"encoding/binary"
	"errors"
	"fmt"

	"solana-pool-monitor/internal/observability"
	"solana-pool-monitor/internal/solana"
)

// initialize2 is instruction tag 1 of the AMM v4 program.
const initialize2Discriminant = 0x01

// initialize2 argument bytes: tag(1) + nonce(1) + openTime(8) +
// initPcAmount(8) + initCoinAmount(8), little-endian.
const initArgsLen = 1 + 1 + 8 + 8 + 8

// Classification errors for malformed pool-initialization matches.
var (
	ErrAccountListTooShort = errors.New("account list too short")
	ErrArgsTooShort        = errors.New("argument bytes too short")
	ErrBadAccount          = errors.New("malformed account address")
)

// AccountLayout maps pool-initialization accounts to positions in the
// instruction account list. Positions are a versioned contract of the
// on-chain program.
type AccountLayout struct {
	Pool        int
	BaseMint    int
	QuoteMint   int
	Creator     int
	MinAccounts int
}

// LayoutV4 is the initialize2 account layout of Raydium AMM v4:
// 4=amm pool, 8=coin (base) mint, 9=pc (quote) mint, 17=user wallet.
var LayoutV4 = AccountLayout{
	Pool:        4,
	BaseMint:    8,
	QuoteMint:   9,
	Creator:     17,
	MinAccounts: 18,
}

// layouts maps a program version name to its account layout.
var layouts = map[string]AccountLayout{
	"v4": LayoutV4,
}

// LayoutForVersion returns the account layout for a program version name.
func LayoutForVersion(version string) (AccountLayout, bool) {
	l, ok := layouts[version]
	return l, ok
}

// PoolInit is the draft of a pool-creation event extracted from one
// initialize2 instruction.
type PoolInit struct {
	Pool      string
	BaseMint  string
	QuoteMint string
	Creator   string

	Nonce           uint8
	OpenTime        int64
	InitBaseAmount  uint64 // init_coin_amount
	InitQuoteAmount uint64 // init_pc_amount
}

// Classifier matches pool-initialization instructions of one program version.
type Classifier struct {
	programID string
	layout    AccountLayout
}

// NewClassifier creates a classifier for programID using the given layout.
func NewClassifier(programID string, layout AccountLayout) *Classifier {
	return &Classifier{programID: programID, layout: layout}
}

// Classify returns a PoolInit draft for initialize2 instructions, nil for
// anything else, and an error for malformed matches. Errors are reportable,
// never pipeline-fatal.
func (c *Classifier) Classify(in CandidateInstruction) (*PoolInit, error) {
	if in.ProgramID != c.programID || in.Discriminant != initialize2Discriminant {
		return nil, nil
	}

	if len(in.Accounts) < c.layout.MinAccounts {
		observability.RecordClassifyError("short_account_list")
		return nil, fmt.Errorf("%w: got %d, need %d", ErrAccountListTooShort, len(in.Accounts), c.layout.MinAccounts)
	}

	if len(in.Data) < initArgsLen {
		observability.RecordClassifyError("short_args")
		return nil, fmt.Errorf("%w: got %d, need %d", ErrArgsTooShort, len(in.Data), initArgsLen)
	}

	pool := in.Accounts[c.layout.Pool]
	baseMint := in.Accounts[c.layout.BaseMint]
	quoteMint := in.Accounts[c.layout.QuoteMint]
	creator := in.Accounts[c.layout.Creator]

	for _, addr := range []string{pool, baseMint, quoteMint} {
		if !solana.IsValidPubkey(addr) {
			observability.RecordClassifyError("bad_account")
			return nil, fmt.Errorf("%w: %q", ErrBadAccount, addr)
		}
	}

	// The creator is the signing wallet; wallets are on-curve keys,
	// unlike the program derived pool accounts.
	creatorBytes, err := solana.DecodePubkey(creator)
	if err != nil || !solana.IsOnCurve(creatorBytes) {
		observability.RecordClassifyError("creator_off_curve")
		return nil, fmt.Errorf("%w: creator %q not an on-curve wallet", ErrBadAccount, creator)
	}

	observability.RecordPoolCreation()

	return &PoolInit{
		Pool:            pool,
		BaseMint:        baseMint,
		QuoteMint:       quoteMint,
		Creator:         creator,
		Nonce:           in.Data[1],
		OpenTime:        int64(readUint64LE(in.Data, 2)),
		InitQuoteAmount: readUint64LE(in.Data, 10),
		InitBaseAmount:  readUint64LE(in.Data, 18),
	}, nil
}

// readUint64LE reads a little-endian uint64 from data at offset.
func readUint64LE(data []byte, offset int) uint64 {
	if offset+8 > len(data) {
		return 0
	}
	return binary.LittleEndian.Uint64(data[offset:])
}
