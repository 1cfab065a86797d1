package sync

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// MetricsSubsystem groups every gauge/counter this package exposes, the same
// shape as the teacher's internal/evidence.MetricsSubsystem.
const MetricsSubsystem = "node_view_synchronizer"

// Metrics contains metrics exposed by the Synchronizer.
type Metrics struct {
	CacheSize          metrics.Gauge
	DeliveryPending    metrics.Gauge
	PeersTracked       metrics.Gauge
	ModifiersRequested metrics.Counter
	ModifiersApplied   metrics.Counter
	SpamDropped        metrics.Counter
	MisbehaviorEvents  metrics.Counter
	NonDeliveryEvents  metrics.Counter
}

// PrometheusMetrics returns Metrics built using the Prometheus client
// library, mirroring the teacher's internal/evidence.PrometheusMetrics.
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		CacheSize: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "modifiers_cache_size",
			Help:      "Number of modifiers currently held in the out-of-order cache.",
		}, labels).With(labelsAndValues...),
		DeliveryPending: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "delivery_pending",
			Help:      "Number of ids currently Requested and awaiting delivery.",
		}, labels).With(labelsAndValues...),
		PeersTracked: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "peers_tracked",
			Help:      "Number of peers with a recorded sync-comparison status.",
		}, labels).With(labelsAndValues...),
		ModifiersRequested: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "modifiers_requested_total",
			Help:      "Total modifiers transitioned to Requested.",
		}, labels).With(labelsAndValues...),
		ModifiersApplied: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "modifiers_applied_total",
			Help:      "Total modifiers transitioned to Applied.",
		}, labels).With(labelsAndValues...),
		SpamDropped: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "spam_dropped_total",
			Help:      "Total unrequested modifier deliveries dropped as spam.",
		}, labels).With(labelsAndValues...),
		MisbehaviorEvents: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "misbehavior_events_total",
			Help:      "Total penalizeMisbehaving reports emitted.",
		}, labels).With(labelsAndValues...),
		NonDeliveryEvents: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "non_delivery_events_total",
			Help:      "Total penalizeNonDelivering reports emitted.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics, used where no Prometheus registry is
// wired up (unit tests, standalone tools).
func NopMetrics() *Metrics {
	return &Metrics{
		CacheSize:          discard.NewGauge(),
		DeliveryPending:    discard.NewGauge(),
		PeersTracked:       discard.NewGauge(),
		ModifiersRequested: discard.NewCounter(),
		ModifiersApplied:   discard.NewCounter(),
		SpamDropped:        discard.NewCounter(),
		MisbehaviorEvents:  discard.NewCounter(),
		NonDeliveryEvents:  discard.NewCounter(),
	}
}
