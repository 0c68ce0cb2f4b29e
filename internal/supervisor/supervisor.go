// Package supervisor owns the subscription lifecycle: it keeps exactly one
// log stream alive, reconnecting with exponential backoff on any drop and
// treating silent stalls the same as explicit disconnects.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"solana-pool-monitor/internal/observability"
	"solana-pool-monitor/internal/solana"
)

// State is the connection state machine position.
type State int

// Connection states. Transitions:
// Disconnected -> Connecting -> Connected -> (Degraded ->) Reconnecting -> Connecting ...
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDegraded
	StateReconnecting
)

// String returns the state name for logs and metrics.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ErrConnectionExhausted is returned by Run when a finite attempt budget is
// configured and spent without a successful connection.
var ErrConnectionExhausted = errors.New("connection attempts exhausted")

// errIdleTimeout marks a stream torn down because nothing arrived within the
// idle window.
var errIdleTimeout = errors.New("idle timeout")

// ConnectFunc establishes one subscription connection. The supervisor calls
// it again after every stream termination.
type ConnectFunc func(ctx context.Context) (solana.LogStream, error)

// Options configures a Supervisor.
type Options struct {
	// InitialBackoff is the first reconnect delay. Default 1s.
	InitialBackoff time.Duration
	// MaxBackoff caps the reconnect delay. Default 30s.
	MaxBackoff time.Duration
	// BackoffMultiplier grows the delay between consecutive failures. Default 2.
	BackoffMultiplier float64
	// JitterFraction adds up to this fraction of the base delay at random.
	// Default 0.2.
	JitterFraction float64
	// MaxAttempts bounds consecutive failed connection attempts; 0 means
	// retry forever.
	MaxAttempts int
	// IdleTimeout forces a reconnect when no record arrives within the
	// window while connected; 0 disables the watchdog.
	IdleTimeout time.Duration
	// Buffer is the outbound record channel capacity. Default 1000.
	Buffer int
	// Logger receives state transition logs. Default log.Default().
	Logger *log.Logger
}

// Status is the externally visible subscription state, owned and mutated
// only by the supervisor.
type Status struct {
	State               State
	ConsecutiveFailures int
	LastRecordAt        time.Time
	Backoff             time.Duration
}

// Supervisor keeps one subscription alive and republishes its records on a
// single channel that survives reconnects.
type Supervisor struct {
	connect ConnectFunc
	opts    Options
	backoff *Backoff
	out     chan solana.LogNotification
	logger  *log.Logger

	mu     sync.Mutex
	status Status
}

// New creates a Supervisor. Run must be called to start it.
func New(connect ConnectFunc, opts Options) *Supervisor {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 1 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.BackoffMultiplier == 0 {
		opts.BackoffMultiplier = 2.0
	}
	if opts.JitterFraction == 0 {
		opts.JitterFraction = 0.2
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 1000
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Supervisor{
		connect: connect,
		opts:    opts,
		backoff: NewBackoff(opts.InitialBackoff, opts.MaxBackoff, opts.BackoffMultiplier, opts.JitterFraction),
		out:     make(chan solana.LogNotification, opts.Buffer),
		logger:  opts.Logger,
	}
}

// Records returns the unified record stream. It is closed when Run returns.
func (s *Supervisor) Records() <-chan solana.LogNotification {
	return s.out
}

// Status returns a snapshot of the subscription state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Run drives the connection state machine until the context is cancelled or
// a finite attempt budget is exhausted. It blocks.
func (s *Supervisor) Run(ctx context.Context) error {
	defer close(s.out)

	failures := 0

	for {
		s.transition(StateConnecting)

		stream, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.transition(StateDisconnected)
				return ctx.Err()
			}

			failures++
			s.noteFailure(failures)
			s.logger.Printf("[supervisor] connect failed (attempt %d): %v", failures, err)

			if s.opts.MaxAttempts > 0 && failures >= s.opts.MaxAttempts {
				s.transition(StateDisconnected)
				return fmt.Errorf("%w after %d attempts: %v", ErrConnectionExhausted, failures, err)
			}

			if !s.waitBackoff(ctx) {
				s.transition(StateDisconnected)
				return ctx.Err()
			}
			continue
		}

		failures = 0
		s.noteFailure(0)
		s.backoff.Reset()
		s.transition(StateConnected)
		observability.RecordSubscriptionEstablished()

		pumpErr := s.pump(ctx, stream)
		stream.Close()

		if ctx.Err() != nil {
			s.transition(StateDisconnected)
			return ctx.Err()
		}

		if errors.Is(pumpErr, errIdleTimeout) {
			s.logger.Printf("[supervisor] no records within %v, treating stall as disconnect", s.opts.IdleTimeout)
		} else if pumpErr != nil {
			s.logger.Printf("[supervisor] stream terminated: %v", pumpErr)
		} else {
			s.logger.Printf("[supervisor] stream closed by remote")
		}

		if !s.waitBackoff(ctx) {
			s.transition(StateDisconnected)
			return ctx.Err()
		}
	}
}

// pump forwards records from one stream until it ends, the context is
// cancelled, or the idle watchdog fires.
func (s *Supervisor) pump(ctx context.Context, stream solana.LogStream) error {
	var idleCh <-chan time.Time
	var idleTimer *time.Timer
	if s.opts.IdleTimeout > 0 {
		idleTimer = time.NewTimer(s.opts.IdleTimeout)
		defer idleTimer.Stop()
		idleCh = idleTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case notif, ok := <-stream.Notifications():
			if !ok {
				return stream.Err()
			}

			s.noteRecord()
			if idleTimer != nil {
				if !idleTimer.Stop() {
					<-idleTimer.C
				}
				idleTimer.Reset(s.opts.IdleTimeout)
			}

			select {
			case s.out <- notif:
			case <-ctx.Done():
				return ctx.Err()
			}

		case <-idleCh:
			s.transition(StateDegraded)
			return errIdleTimeout
		}
	}
}

// waitBackoff sleeps the next backoff delay in the Reconnecting state.
// Returns false when the context was cancelled while waiting.
func (s *Supervisor) waitBackoff(ctx context.Context) bool {
	s.transition(StateReconnecting)
	observability.RecordReconnect()

	delay := s.backoff.Next()
	s.mu.Lock()
	s.status.Backoff = delay
	s.mu.Unlock()

	s.logger.Printf("[supervisor] reconnecting in %v", delay)

	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

// transition moves the state machine and logs the edge.
func (s *Supervisor) transition(next State) {
	s.mu.Lock()
	prev := s.status.State
	s.status.State = next
	s.mu.Unlock()

	if prev != next {
		s.logger.Printf("[supervisor] %s -> %s", prev, next)
		observability.SetConnectionState(next.String(), int(next))
	}
}

func (s *Supervisor) noteFailure(count int) {
	s.mu.Lock()
	s.status.ConsecutiveFailures = count
	s.mu.Unlock()
}

func (s *Supervisor) noteRecord() {
	now := time.Now()
	s.mu.Lock()
	s.status.LastRecordAt = now
	s.mu.Unlock()
	observability.RecordStreamRecord()
}
