// Package observability exposes HiveBoard's Prometheus metrics endpoint.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/histogram/gauge HiveBoard exports, all
// registered against a private registry so tests can spin up independent
// instances without colliding on the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	IngestBatches   *prometheus.CounterVec
	IngestEvents    *prometheus.CounterVec
	IngestRejected  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AgentsStuck     *prometheus.GaugeVec
	AlertsFired     *prometheus.CounterVec
	BroadcastSent   *prometheus.CounterVec
	RetentionPruned *prometheus.CounterVec
}

// NewMetrics builds and registers HiveBoard's metric set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		IngestBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hiveboard",
			Name:      "ingest_batches_total",
			Help:      "Ingest batches accepted, labeled by tenant.",
		}, []string{"tenant_id"}),
		IngestEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hiveboard",
			Name:      "ingest_events_total",
			Help:      "Individual events accepted, labeled by tenant and event type.",
		}, []string{"tenant_id", "event_type"}),
		IngestRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hiveboard",
			Name:      "ingest_events_rejected_total",
			Help:      "Individual events rejected by validation, labeled by tenant.",
		}, []string{"tenant_id"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hiveboard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, labeled by route and status class.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route", "status_class"}),
		AgentsStuck: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hiveboard",
			Name:      "agents_stuck",
			Help:      "Number of agents currently in the stuck derived state, labeled by tenant.",
		}, []string{"tenant_id"}),
		AlertsFired: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hiveboard",
			Name:      "alerts_fired_total",
			Help:      "Alert rule firings, labeled by tenant and severity.",
		}, []string{"tenant_id", "severity"}),
		BroadcastSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hiveboard",
			Name:      "broadcast_messages_total",
			Help:      "WebSocket broadcast messages sent, labeled by message type.",
		}, []string{"type"}),
		RetentionPruned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hiveboard",
			Name:      "retention_events_pruned_total",
			Help:      "Events evicted by the retention sweep, labeled by tenant.",
		}, []string{"tenant_id"}),
	}
	return m
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
