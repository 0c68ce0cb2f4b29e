package monitor

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"solana-pool-monitor/internal/raydium"
	"solana-pool-monitor/internal/solana"
	"solana-pool-monitor/internal/supervisor"
)

// fakeRPC serves a scripted transaction, failing a configured number of
// times first.
type fakeRPC struct {
	tx       *solana.Transaction
	failures int32
	calls    int32
}

func (f *fakeRPC) GetTransaction(_ context.Context, _ string) (*solana.Transaction, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= atomic.LoadInt32(&f.failures) {
		return nil, errors.New("node behind")
	}
	return f.tx, nil
}

func (f *fakeRPC) GetAccountInfo(_ context.Context, _ string) (*solana.AccountInfo, error) {
	return nil, nil
}

// fakeStream is a scripted LogStream.
type fakeStream struct {
	ch chan solana.LogNotification
}

func (f *fakeStream) Notifications() <-chan solana.LogNotification { return f.ch }
func (f *fakeStream) Err() error                                   { return nil }
func (f *fakeStream) Close() error                                 { return nil }

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func initLogs(program string) []string {
	return []string{
		"Program " + program + " invoke [1]",
		"Program log: initialize2: InitializeInstruction2 { nonce: 254, open_time: 1700000000 }",
		"Program " + program + " success",
	}
}

func TestWSRecordSource_MentionsPoolInit(t *testing.T) {
	s := NewWSRecordSource(nil, nil, raydium.ProgramIDV4, discard())

	if !s.mentionsPoolInit(initLogs(raydium.ProgramIDV4)) {
		t.Error("expected initialize2 invocation to pass the prefilter")
	}

	swap := []string{
		"Program " + raydium.ProgramIDV4 + " invoke [1]",
		"Program log: ray_log: A...",
		"Program " + raydium.ProgramIDV4 + " success",
	}
	if s.mentionsPoolInit(swap) {
		t.Error("expected a swap to be prefiltered out")
	}

	otherProgram := []string{
		"Program SomeOtherProgram1111111111111111111111111111 invoke [1]",
		"Program log: initialize2",
	}
	if s.mentionsPoolInit(otherProgram) {
		t.Error("expected initialize2 of another program to be prefiltered out")
	}
}

func TestWSRecordSource_EmitsEnrichedRecord(t *testing.T) {
	stream := &fakeStream{ch: make(chan solana.LogNotification, 1)}
	stream.ch <- solana.LogNotification{
		Signature: "tx-sig",
		Slot:      555,
		Logs:      initLogs(raydium.ProgramIDV4),
	}

	sup := supervisor.New(func(ctx context.Context) (solana.LogStream, error) {
		return stream, nil
	}, supervisor.Options{
		InitialBackoff: time.Millisecond,
		Logger:         discard(),
	})

	rpc := &fakeRPC{tx: &solana.Transaction{
		Signature: "tx-sig",
		Slot:      555,
		BlockTime: 1700000000,
		Message: &solana.TransactionMessage{
			AccountKeys: []string{"a", "b"},
			Instructions: []solana.Instruction{
				{ProgramIDIndex: 1, Accounts: []int{0}, Data: "2"},
			},
		},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	source := NewWSRecordSource(sup, rpc, raydium.ProgramIDV4, discard())
	records, err := source.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	select {
	case rec := <-records:
		if rec.Signature != "tx-sig" || rec.Slot != 555 {
			t.Errorf("unexpected record identity: %+v", rec)
		}
		if rec.BlockTime != 1700000000 {
			t.Errorf("expected block time 1700000000, got %d", rec.BlockTime)
		}
		if len(rec.AccountKeys) != 2 || len(rec.Instructions) != 1 {
			t.Errorf("expected fetched message to be attached, got %+v", rec)
		}
		if len(rec.Logs) != 3 {
			t.Errorf("expected subscription logs to be carried, got %d", len(rec.Logs))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a record")
	}
}

func TestWSRecordSource_SkipsFailedTransactions(t *testing.T) {
	stream := &fakeStream{ch: make(chan solana.LogNotification, 2)}
	stream.ch <- solana.LogNotification{
		Signature: "failed-sig",
		Logs:      initLogs(raydium.ProgramIDV4),
		Err:       map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
	}
	stream.ch <- solana.LogNotification{
		Signature: "ok-sig",
		Logs:      initLogs(raydium.ProgramIDV4),
	}

	sup := supervisor.New(func(ctx context.Context) (solana.LogStream, error) {
		return stream, nil
	}, supervisor.Options{
		InitialBackoff: time.Millisecond,
		Logger:         discard(),
	})

	rpc := &fakeRPC{tx: &solana.Transaction{Signature: "ok-sig"}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	source := NewWSRecordSource(sup, rpc, raydium.ProgramIDV4, discard())
	records, err := source.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	select {
	case rec := <-records:
		if rec.Signature != "ok-sig" {
			t.Errorf("the failed transaction should have been skipped, got %s", rec.Signature)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a record")
	}
}

func TestRetryGetTransaction_EventualSuccess(t *testing.T) {
	rpc := &fakeRPC{tx: &solana.Transaction{Signature: "sig"}, failures: 1}

	tx, err := retryGetTransaction(context.Background(), rpc, "sig", discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx == nil || tx.Signature != "sig" {
		t.Errorf("unexpected transaction: %+v", tx)
	}
	if got := atomic.LoadInt32(&rpc.calls); got != 2 {
		t.Errorf("expected 2 calls, got %d", got)
	}
}

func TestRetryGetTransaction_Exhausted(t *testing.T) {
	rpc := &fakeRPC{failures: 100}

	_, err := retryGetTransaction(context.Background(), rpc, "sig", discard())
	if err == nil {
		t.Fatal("expected an error after the retry budget is spent")
	}
	if got := atomic.LoadInt32(&rpc.calls); got != fetchMaxRetries {
		t.Errorf("expected %d calls, got %d", fetchMaxRetries, got)
	}
}

func TestRetryGetTransaction_CancelledContext(t *testing.T) {
	rpc := &fakeRPC{failures: 100}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := retryGetTransaction(ctx, rpc, "sig", discard())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
