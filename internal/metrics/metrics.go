package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/accredit/compliance/internal/domain"
)

// Metrics provides observability for the compliance gate.
type Metrics struct {
	// Decision outcomes by mode ("check" or "apply"), outcome and reason
	Decisions *prometheus.CounterVec

	// Latency of the atomic apply including commit
	ApplyLatency prometheus.Histogram

	// Registry cache lookups by result: "hit", "miss", "error"
	CacheLookups *prometheus.CounterVec

	// Outbox relay publishes by result: "published", "failed", "skipped"
	OutboxEvents *prometheus.CounterVec

	// Events waiting in the outbox and the age of the oldest one
	OutboxPending prometheus.Gauge
	OutboxLag     prometheus.Gauge

	// HTTP request latency by method, route pattern and status code
	HTTPRequests *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers all collectors on reg; Handler serves the same registry.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_transfer_decisions_total",
			Help: "Transfer eligibility decisions by mode, outcome and denial reason",
		}, []string{"mode", "outcome", "reason"}),

		ApplyLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "compliance_transfer_apply_duration_seconds",
			Help:    "Duration of atomic apply-if-eligible transactions",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_registry_cache_lookups_total",
			Help: "Registry cache lookups by result",
		}, []string{"result"}),

		OutboxEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_outbox_events_total",
			Help: "Outbox events handled by the relay, by result",
		}, []string{"result"}),

		OutboxPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "compliance_outbox_pending_events",
			Help: "Events written to the outbox and not yet published",
		}),

		OutboxLag: f.NewGauge(prometheus.GaugeOpts{
			Name: "compliance_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox event",
		}),

		HTTPRequests: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compliance_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		gatherer: reg,
	}
}

// ObserveDecision records one decision.
func (m *Metrics) ObserveDecision(mode string, d domain.Decision) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !d.Allowed {
		outcome = "denied"
	}
	m.Decisions.WithLabelValues(mode, outcome, string(d.Reason)).Inc()
}

// ObserveApplyLatency records the duration of an apply transaction.
func (m *Metrics) ObserveApplyLatency(d time.Duration) {
	if m != nil {
		m.ApplyLatency.Observe(d.Seconds())
	}
}

// IncrementCacheLookup records a registry cache lookup.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

// AddOutboxEvents records n relay outcomes.
func (m *Metrics) AddOutboxEvents(result string, n int) {
	if m != nil && n > 0 {
		m.OutboxEvents.WithLabelValues(result).Add(float64(n))
	}
}

// SetOutboxBacklog publishes the relay backlog as of now.
func (m *Metrics) SetOutboxBacklog(b domain.OutboxBacklog, now time.Time) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(b.Pending))
	lag := 0.0
	if b.Pending > 0 && !b.Oldest.IsZero() {
		lag = now.Sub(b.Oldest).Seconds()
	}
	m.OutboxLag.Set(lag)
}

// ObserveHTTPRequest records one served request. route must be a pattern, not a raw path.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
