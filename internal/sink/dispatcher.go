package sink

import (
	"context"
	"log"
	"sync"
	"time"

	"solana-pool-monitor/internal/domain"
	"solana-pool-monitor/internal/observability"
)

// RetryPolicy bounds per-consumer delivery retries.
type RetryPolicy struct {
	// MaxAttempts is the total number of delivery attempts per event.
	MaxAttempts int
	// InitialDelay is the wait after the first failed attempt.
	InitialDelay time.Duration
	// MaxDelay caps the growing retry delay.
	MaxDelay time.Duration
	// Multiplier grows the delay between attempts.
	Multiplier float64
	// AttemptTimeout bounds a single Deliver call.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns the default per-consumer retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		AttemptTimeout: 10 * time.Second,
	}
}

// Options configures a Dispatcher.
type Options struct {
	// QueueSize is the per-consumer queue capacity. Default 256.
	QueueSize int
	// Retry is the per-consumer retry policy.
	Retry RetryPolicy
	// Logger receives delivery failure logs. Default log.Default().
	Logger *log.Logger
}

// Dispatcher fans events out to every registered sink. Each sink gets its
// own bounded queue and worker goroutine, so a slow or failing consumer
// never blocks or drops delivery to the others. Sequence numbers are
// assigned here, under a single mutex, in dispatch order.
type Dispatcher struct {
	consumers []*consumer
	logger    *log.Logger

	seqMu sync.Mutex
	seq   uint64

	wg     sync.WaitGroup
	closed sync.Once
}

type consumer struct {
	sink   Sink
	queue  chan *domain.PoolCreationEvent
	retry  RetryPolicy
	logger *log.Logger
}

// NewDispatcher creates a dispatcher and starts one worker per sink.
func NewDispatcher(sinks []Sink, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	d := &Dispatcher{logger: opts.Logger}

	for _, s := range sinks {
		c := &consumer{
			sink:   s,
			queue:  make(chan *domain.PoolCreationEvent, opts.QueueSize),
			retry:  opts.Retry,
			logger: opts.Logger,
		}
		d.consumers = append(d.consumers, c)

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			c.run()
		}()
	}

	return d
}

// Dispatch assigns the next sequence number to the event and enqueues it for
// every consumer. A consumer with a full queue loses this event (counted and
// logged); the others are unaffected.
func (d *Dispatcher) Dispatch(event *domain.PoolCreationEvent) {
	d.seqMu.Lock()
	d.seq++
	event.Sequence = d.seq
	d.seqMu.Unlock()

	observability.RecordDispatch()

	for _, c := range d.consumers {
		select {
		case c.queue <- event:
		default:
			d.logger.Printf("[dispatch] %s: queue full, dropping event seq=%d sig=%s",
				c.sink.Name(), event.Sequence, event.TxSignature)
			observability.RecordSinkQueueDrop(c.sink.Name())
		}
	}
}

// Close stops accepting events, lets queued deliveries drain and waits for
// all workers to finish.
func (d *Dispatcher) Close() {
	d.closed.Do(func() {
		for _, c := range d.consumers {
			close(c.queue)
		}
	})
	d.wg.Wait()
}

// run drains the consumer queue until it is closed.
func (c *consumer) run() {
	for event := range c.queue {
		c.deliver(event)
	}
}

// deliver attempts one event with the consumer's own retry budget. After the
// budget is spent the event is dropped for this consumer only.
func (c *consumer) deliver(event *domain.PoolCreationEvent) {
	delay := c.retry.InitialDelay
	name := c.sink.Name()

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), c.retry.AttemptTimeout)
		start := time.Now()
		err := c.sink.Deliver(ctx, event)
		elapsed := time.Since(start).Seconds()
		cancel()

		if err == nil {
			observability.RecordSinkDelivery(name, "ok", elapsed)
			return
		}
		observability.RecordSinkDelivery(name, "error", elapsed)

		if attempt < c.retry.MaxAttempts {
			c.logger.Printf("[dispatch] %s: delivery attempt %d/%d failed for seq=%d sig=%s, retrying in %v: %v",
				name, attempt, c.retry.MaxAttempts, event.Sequence, event.TxSignature, delay, err)
			time.Sleep(delay)
			delay = time.Duration(float64(delay) * c.retry.Multiplier)
			if delay > c.retry.MaxDelay {
				delay = c.retry.MaxDelay
			}
			continue
		}

		c.logger.Printf("[dispatch] %s: delivery failed after %d attempts for seq=%d sig=%s, dropping: %v",
			name, c.retry.MaxAttempts, event.Sequence, event.TxSignature, err)
		observability.RecordSinkDelivery(name, "dropped", 0)
	}
}
