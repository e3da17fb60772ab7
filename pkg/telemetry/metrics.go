package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for sync runs. A disabled instance is a
// no-op; callers never need to nil-check.
type Metrics struct {
	config MetricsConfig

	// objectsReconciled counts reconciled objects by kind and outcome.
	objectsReconciled *prometheus.CounterVec

	// runDuration observes wall-clock run time by final status.
	runDuration *prometheus.HistogramVec

	// targetRequests counts HTTP calls against the inventory store.
	targetRequests *prometheus.CounterVec

	// sourceListCalls counts enumeration calls against the cloud API.
	sourceListCalls *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector. When cfg.Enabled is false the
// returned instance discards every observation.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		config:   cfg,
		registry: registry,

		objectsReconciled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "objects_reconciled_total",
				Help:      "Total number of inventory objects reconciled",
			},
			[]string{"kind", "outcome"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of sync runs in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		targetRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "target_requests_total",
				Help:      "Total number of HTTP requests to the inventory store",
			},
			[]string{"method", "collection"},
		),
		sourceListCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "source_list_calls_total",
				Help:      "Total number of list calls against the cloud API",
			},
			[]string{"kind"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.objectsReconciled, m.runDuration, m.targetRequests, m.sourceListCalls,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ObserveObject records one reconciled object.
func (m *Metrics) ObserveObject(kind, outcome string) {
	if m.objectsReconciled == nil {
		return
	}
	m.objectsReconciled.WithLabelValues(kind, outcome).Inc()
}

// ObserveRunDuration records the duration of a completed run.
func (m *Metrics) ObserveRunDuration(status string, d time.Duration) {
	if m.runDuration == nil {
		return
	}
	m.runDuration.WithLabelValues(status).Observe(d.Seconds())
}

// IncTargetRequest records one HTTP request to the inventory store.
func (m *Metrics) IncTargetRequest(method, collection string) {
	if m.targetRequests == nil {
		return
	}
	m.targetRequests.WithLabelValues(method, collection).Inc()
}

// IncSourceList records one enumeration call against the cloud API.
func (m *Metrics) IncSourceList(kind string) {
	if m.sourceListCalls == nil {
		return
	}
	m.sourceListCalls.WithLabelValues(kind).Inc()
}

// Registry exposes the underlying registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the metrics, or nil when disabled.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
