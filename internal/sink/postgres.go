package sink

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"solana-pool-monitor/internal/domain"
)

// postgresSchema is the append-only events table. The unique signature
// constraint makes redelivery after a crash idempotent.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS pool_creation_events (
	tx_signature      TEXT PRIMARY KEY,
	sequence          BIGINT NOT NULL,
	slot              BIGINT NOT NULL,
	pool              TEXT NOT NULL,
	base_mint         TEXT NOT NULL,
	quote_mint        TEXT NOT NULL,
	creator           TEXT NOT NULL,
	nonce             SMALLINT NOT NULL,
	open_time         BIGINT NOT NULL,
	init_base_amount  NUMERIC(20, 0) NOT NULL,
	init_quote_amount NUMERIC(20, 0) NOT NULL,
	base_name         TEXT,
	quote_name        TEXT,
	block_time        TIMESTAMPTZ,
	detected_at       TIMESTAMPTZ NOT NULL
)
`

// Postgres persists events into an append-only PostgreSQL table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to PostgreSQL and ensures the events table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure events table: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Compile-time interface check.
var _ Sink = (*Postgres)(nil)

// Name identifies the sink.
func (p *Postgres) Name() string { return "postgres" }

// Deliver inserts the event. A duplicate signature means the event was
// already delivered and is treated as success.
func (p *Postgres) Deliver(ctx context.Context, event *domain.PoolCreationEvent) error {
	query := `
		INSERT INTO pool_creation_events (
			tx_signature, sequence, slot, pool, base_mint, quote_mint, creator,
			nonce, open_time, init_base_amount, init_quote_amount,
			base_name, quote_name, block_time, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	var blockTime *time.Time
	if !event.BlockTime.IsZero() {
		t := event.BlockTime
		blockTime = &t
	}

	_, err := p.pool.Exec(ctx, query,
		event.TxSignature,
		int64(event.Sequence),
		event.Slot,
		event.Pool,
		event.BaseMint,
		event.QuoteMint,
		event.Creator,
		int16(event.Nonce),
		event.OpenTime,
		strconv.FormatUint(event.InitBaseAmount, 10),
		strconv.FormatUint(event.InitQuoteAmount, 10),
		tokenName(event.BaseToken),
		tokenName(event.QuoteToken),
		blockTime,
		event.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("insert pool creation event: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// tokenName returns the token name for storage, nil when unknown.
func tokenName(t *domain.TokenInfo) *string {
	if t == nil || t.Name == "" {
		return nil
	}
	return &t.Name
}

// pgErrUniqueViolation is the PostgreSQL unique_violation error code.
const pgErrUniqueViolation = "23505"

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}
