// Package monitor wires the pipeline: supervised log stream in,
// deduplicated pool-creation events out.
package monitor

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"solana-pool-monitor/internal/domain"
	"solana-pool-monitor/internal/observability"
	"solana-pool-monitor/internal/solana"
	"solana-pool-monitor/internal/supervisor"
)

// RecordSource yields raw records for the pipeline. The channel is closed
// when the source terminates.
type RecordSource interface {
	Subscribe(ctx context.Context) (<-chan domain.RawRecord, error)
}

const (
	fetchMaxRetries = 3
	fetchRetryDelay = 500 * time.Millisecond
	// settleDelay gives the node time to index the transaction before the
	// first getTransaction call.
	settleDelay = 500 * time.Millisecond
)

// WSRecordSource builds raw records from the supervised log stream: each
// surviving notification is enriched with the full transaction fetched over
// RPC so the decoder sees compiled instructions and account keys.
type WSRecordSource struct {
	sup       *supervisor.Supervisor
	rpc       solana.RPCClient
	programID string
	logger    *log.Logger
}

// NewWSRecordSource creates a record source for one target program.
func NewWSRecordSource(sup *supervisor.Supervisor, rpc solana.RPCClient, programID string, logger *log.Logger) *WSRecordSource {
	if logger == nil {
		logger = log.Default()
	}
	return &WSRecordSource{
		sup:       sup,
		rpc:       rpc,
		programID: programID,
		logger:    logger,
	}
}

// Compile-time interface check.
var _ RecordSource = (*WSRecordSource)(nil)

// Subscribe returns the raw record channel. It is closed when the supervised
// stream ends or the context is cancelled.
func (s *WSRecordSource) Subscribe(ctx context.Context) (<-chan domain.RawRecord, error) {
	out := make(chan domain.RawRecord, 100)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case notif, ok := <-s.sup.Records():
				if !ok {
					s.logger.Println("[source] supervised stream closed")
					return
				}
				s.processNotification(ctx, out, notif)
			}
		}
	}()

	return out, nil
}

// processNotification filters one notification and, when it can be a pool
// initialization, fetches the full transaction and emits a RawRecord.
func (s *WSRecordSource) processNotification(ctx context.Context, out chan<- domain.RawRecord, notif solana.LogNotification) {
	// Skip transactions that failed on-chain.
	if notif.Err != nil {
		return
	}

	// Cheap log prefilter: only initialize2 invocations of the target
	// program are worth an RPC round trip.
	if !s.mentionsPoolInit(notif.Logs) {
		observability.RecordPrefiltered()
		return
	}

	receivedAt := time.Now()
	s.logger.Printf("[source] initialize2 candidate tx=%s slot=%d", notif.Signature, notif.Slot)

	// Let the node index the transaction before fetching.
	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return
	}

	tx, err := retryGetTransaction(ctx, s.rpc, notif.Signature, s.logger)
	if err == nil && tx == nil {
		err = errors.New("transaction not found")
	}
	observability.RecordFetch(err)
	if err != nil {
		s.logger.Printf("[source] dropping tx %s, fetch failed after %d retries: %v", notif.Signature, fetchMaxRetries, err)
		return
	}

	rec := domain.RawRecord{
		Signature:  notif.Signature,
		Slot:       notif.Slot,
		Logs:       notif.Logs,
		BlockTime:  tx.BlockTime,
		ReceivedAt: receivedAt,
	}
	if tx.Message != nil {
		rec.AccountKeys = tx.Message.AccountKeys
		rec.Instructions = tx.Message.Instructions
	}

	select {
	case out <- rec:
	case <-ctx.Done():
	}
}

// mentionsPoolInit reports whether the logs show the target program invoking
// initialize2.
func (s *WSRecordSource) mentionsPoolInit(logs []string) bool {
	invoked := false
	initialize := false
	for _, l := range logs {
		if !invoked && strings.Contains(l, "Program "+s.programID+" invoke") {
			invoked = true
		}
		if !initialize && strings.Contains(l, "initialize2") {
			initialize = true
		}
		if invoked && initialize {
			return true
		}
	}
	return false
}

// retryGetTransaction fetches a transaction with exponential backoff retry.
func retryGetTransaction(ctx context.Context, rpc solana.RPCClient, signature string, logger *log.Logger) (*solana.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < fetchMaxRetries; attempt++ {
		tx, err := rpc.GetTransaction(ctx, signature)
		if err == nil && tx != nil {
			return tx, nil
		}
		if err == nil {
			lastErr = errors.New("transaction not found")
		} else {
			lastErr = err
		}

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Exponential backoff: 500ms, 1s, 2s
		delay := fetchRetryDelay * time.Duration(1<<attempt)
		logger.Printf("[source] retry %d/%d for GetTransaction %s after %v: %v", attempt+1, fetchMaxRetries, signature, delay, lastErr)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
