// Package sink delivers pool-creation events to downstream consumers with
// per-consumer failure isolation.
package sink

import (
	"context"

	"solana-pool-monitor/internal/domain"
)

// Sink is one downstream consumer of pool-creation events.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Deliver sends one event. A returned error triggers the dispatcher's
	// per-consumer retry; it never affects other sinks.
	Deliver(ctx context.Context, event *domain.PoolCreationEvent) error
}
