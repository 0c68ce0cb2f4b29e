// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the monitor.
type Metrics struct {
	// Subscription metrics
	StreamRecords            prometheus.Counter
	Reconnects               prometheus.Counter
	SubscriptionsEstablished prometheus.Counter
	ConnectionState          prometheus.Gauge
	StateTransitions         *prometheus.CounterVec
	LastRecordTimestamp      prometheus.Gauge

	// Record source metrics
	RecordsFetched     prometheus.Counter
	FetchFailures      prometheus.Counter
	RecordsPrefiltered prometheus.Counter

	// Decode/classify metrics
	InstructionsDecoded prometheus.Counter
	DecodeSkips         *prometheus.CounterVec
	ClassifyErrors      *prometheus.CounterVec
	PoolCreations       prometheus.Counter

	// Dedup metrics
	DuplicatesDropped prometheus.Counter
	DedupWindowSize   prometheus.Gauge

	// Dispatch metrics
	EventsDispatched    prometheus.Counter
	SinkDeliveries      *prometheus.CounterVec
	SinkQueueDrops      *prometheus.CounterVec
	SinkDeliveryLatency *prometheus.HistogramVec
	DetectionDelay      prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pool_monitor"
	}

	return &Metrics{
		StreamRecords: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "records_total",
			Help:      "Total number of log records received from the subscription",
		}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of reconnect attempts",
		}),
		SubscriptionsEstablished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "subscriptions_established_total",
			Help:      "Total number of successful subscriptions",
		}),
		ConnectionState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connection_state",
			Help:      "Current connection state (0=disconnected 1=connecting 2=connected 3=degraded 4=reconnecting)",
		}),
		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "state_transitions_total",
			Help:      "Total number of connection state transitions by target state",
		}, []string{"state"}),
		LastRecordTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "last_record_timestamp",
			Help:      "Unix timestamp of the last record received",
		}),

		RecordsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "records_fetched_total",
			Help:      "Total number of transactions fetched over RPC",
		}),
		FetchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetch_failures_total",
			Help:      "Total number of transaction fetches that failed after retries",
		}),
		RecordsPrefiltered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "records_prefiltered_total",
			Help:      "Total number of records dropped by the log prefilter before any RPC call",
		}),

		InstructionsDecoded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "instructions_total",
			Help:      "Total number of candidate instructions decoded for the target program",
		}),
		DecodeSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "skips_total",
			Help:      "Total number of instruction payloads skipped during decoding by reason",
		}, []string{"reason"}),
		ClassifyErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "errors_total",
			Help:      "Total number of malformed pool-initialization matches by reason",
		}, []string{"reason"}),
		PoolCreations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "pool_creations_total",
			Help:      "Total number of pool-creation instructions classified",
		}),

		DuplicatesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "duplicates_dropped_total",
			Help:      "Total number of events dropped as duplicate signatures",
		}),
		DedupWindowSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "window_size",
			Help:      "Current number of signatures tracked in the dedup window",
		}),

		EventsDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "events_total",
			Help:      "Total number of pool-creation events handed to the dispatcher",
		}),
		SinkDeliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "sink_deliveries_total",
			Help:      "Total number of sink delivery outcomes by sink and status",
		}, []string{"sink", "status"}),
		SinkQueueDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "sink_queue_drops_total",
			Help:      "Total number of events dropped because a sink queue was full",
		}, []string{"sink"}),
		SinkDeliveryLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "sink_delivery_latency_seconds",
			Help:      "Sink delivery latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sink"}),
		DetectionDelay: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "detection_delay_seconds",
			Help:      "Delay between slot block time and detection",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordStreamRecord counts a record received from the subscription and
// updates the last-record timestamp.
func RecordStreamRecord() {
	DefaultMetrics.StreamRecords.Inc()
	DefaultMetrics.LastRecordTimestamp.SetToCurrentTime()
}

// RecordReconnect counts a reconnect attempt.
func RecordReconnect() {
	DefaultMetrics.Reconnects.Inc()
}

// RecordSubscriptionEstablished counts a successful subscription.
func RecordSubscriptionEstablished() {
	DefaultMetrics.SubscriptionsEstablished.Inc()
}

// SetConnectionState records a connection state transition.
func SetConnectionState(state string, value int) {
	DefaultMetrics.ConnectionState.Set(float64(value))
	DefaultMetrics.StateTransitions.WithLabelValues(state).Inc()
}

// RecordFetch counts a transaction fetch outcome.
func RecordFetch(err error) {
	if err != nil {
		DefaultMetrics.FetchFailures.Inc()
		return
	}
	DefaultMetrics.RecordsFetched.Inc()
}

// RecordPrefiltered counts a record dropped by the log prefilter.
func RecordPrefiltered() {
	DefaultMetrics.RecordsPrefiltered.Inc()
}

// RecordInstructionDecoded counts a decoded candidate instruction.
func RecordInstructionDecoded() {
	DefaultMetrics.InstructionsDecoded.Inc()
}

// RecordDecodeSkip counts a skipped instruction payload.
func RecordDecodeSkip(reason string) {
	DefaultMetrics.DecodeSkips.WithLabelValues(reason).Inc()
}

// RecordClassifyError counts a malformed pool-initialization match.
func RecordClassifyError(reason string) {
	DefaultMetrics.ClassifyErrors.WithLabelValues(reason).Inc()
}

// RecordPoolCreation counts a classified pool creation.
func RecordPoolCreation() {
	DefaultMetrics.PoolCreations.Inc()
}

// RecordDuplicate counts a duplicate signature drop.
func RecordDuplicate() {
	DefaultMetrics.DuplicatesDropped.Inc()
}

// SetDedupWindowSize updates the dedup window gauge.
func SetDedupWindowSize(n int) {
	DefaultMetrics.DedupWindowSize.Set(float64(n))
}

// RecordDispatch counts an event handed to the dispatcher.
func RecordDispatch() {
	DefaultMetrics.EventsDispatched.Inc()
}

// RecordSinkDelivery records a sink delivery outcome.
func RecordSinkDelivery(sink, status string, seconds float64) {
	DefaultMetrics.SinkDeliveries.WithLabelValues(sink, status).Inc()
	DefaultMetrics.SinkDeliveryLatency.WithLabelValues(sink).Observe(seconds)
}

// RecordSinkQueueDrop counts an event dropped on a full sink queue.
func RecordSinkQueueDrop(sink string) {
	DefaultMetrics.SinkQueueDrops.WithLabelValues(sink).Inc()
}

// RecordDetectionDelay observes block-time-to-detection delay.
func RecordDetectionDelay(seconds float64) {
	if seconds >= 0 {
		DefaultMetrics.DetectionDelay.Observe(seconds)
	}
}
