package monitor

import (
	"context"
	"errors"
	"log"
	"time"

	"solana-pool-monitor/internal/dedup"
	"solana-pool-monitor/internal/domain"
	"solana-pool-monitor/internal/observability"
	"solana-pool-monitor/internal/raydium"
	"solana-pool-monitor/internal/sink"
	"solana-pool-monitor/internal/tokenmeta"
)

// RunnerOptions collects the pipeline stages. Source, Decoder, Classifier,
// Dedup and Dispatcher are required; Metadata is optional enrichment.
type RunnerOptions struct {
	Source     RecordSource
	Decoder    *raydium.Decoder
	Classifier *raydium.Classifier
	Dedup      *dedup.Window
	Metadata   *tokenmeta.Source
	Dispatcher *sink.Dispatcher
	Logger     *log.Logger
}

// Runner drives records through decode, classify, dedup, enrich and dispatch.
type Runner struct {
	source     RecordSource
	decoder    *raydium.Decoder
	classifier *raydium.Classifier
	dedup      *dedup.Window
	metadata   *tokenmeta.Source
	dispatcher *sink.Dispatcher
	logger     *log.Logger
}

// NewRunner creates a pipeline runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		source:     opts.Source,
		decoder:    opts.Decoder,
		classifier: opts.Classifier,
		dedup:      opts.Dedup,
		metadata:   opts.Metadata,
		dispatcher: opts.Dispatcher,
		logger:     logger,
	}
}

// Run consumes records until the context is cancelled or the source channel
// closes. The caller owns the dispatcher and closes it after Run returns.
func (r *Runner) Run(ctx context.Context) error {
	records, err := r.source.Subscribe(ctx)
	if err != nil {
		return err
	}
	r.logger.Println("[pipeline] started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-records:
			if !ok {
				return errors.New("record stream closed")
			}
			r.process(ctx, rec)
		}
	}
}

// process runs one raw record through the pipeline stages.
func (r *Runner) process(ctx context.Context, rec domain.RawRecord) {
	for _, in := range r.decoder.Decode(rec) {
		init, err := r.classifier.Classify(in)
		if err != nil {
			r.logger.Printf("[pipeline] malformed pool init in tx %s: %v", rec.Signature, err)
			continue
		}
		if init == nil {
			continue
		}

		if r.dedup.Seen(rec.Signature) {
			observability.RecordDuplicate()
			continue
		}
		observability.SetDedupWindowSize(r.dedup.Len())

		event := buildEvent(rec, init)
		r.enrich(ctx, event)

		if !event.BlockTime.IsZero() {
			observability.RecordDetectionDelay(rec.ReceivedAt.Sub(event.BlockTime).Seconds())
		}

		r.dispatcher.Dispatch(event)
		r.logger.Printf("[pipeline] new pool %s base=%s quote=%s creator=%s tx=%s slot=%d",
			event.Pool, event.BaseMint, event.QuoteMint, event.Creator, event.TxSignature, event.Slot)
	}
}

// buildEvent assembles the pool-creation event from the record and the
// parsed initialization.
func buildEvent(rec domain.RawRecord, init *raydium.PoolInit) *domain.PoolCreationEvent {
	event := &domain.PoolCreationEvent{
		TxSignature:     rec.Signature,
		Slot:            rec.Slot,
		Pool:            init.Pool,
		BaseMint:        init.BaseMint,
		QuoteMint:       init.QuoteMint,
		Creator:         init.Creator,
		Nonce:           init.Nonce,
		OpenTime:        init.OpenTime,
		InitBaseAmount:  init.InitBaseAmount,
		InitQuoteAmount: init.InitQuoteAmount,
		Timestamp:       rec.ReceivedAt,
	}
	if rec.BlockTime > 0 {
		event.BlockTime = time.Unix(rec.BlockTime, 0).UTC()
	}
	return event
}

// enrich attaches token metadata for both mints. Enrichment failures are
// logged and the event carries a placeholder instead.
func (r *Runner) enrich(ctx context.Context, event *domain.PoolCreationEvent) {
	if r.metadata == nil {
		return
	}
	event.BaseToken = r.fetchToken(ctx, event.BaseMint)
	event.QuoteToken = r.fetchToken(ctx, event.QuoteMint)
}

func (r *Runner) fetchToken(ctx context.Context, mint string) *domain.TokenInfo {
	info, err := r.metadata.Fetch(ctx, mint)
	if err != nil || info == nil {
		if err != nil {
			r.logger.Printf("[pipeline] token metadata fetch failed for %s: %v", mint, err)
		}
		return &domain.TokenInfo{
			Mint:     mint,
			Name:     "Unknown Token " + mint,
			Decimals: 9,
		}
	}
	return info
}
