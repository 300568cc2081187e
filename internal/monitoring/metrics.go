// Package monitoring exposes Prometheus metrics for source adapters, bulk jobs
// and the HTTP API, plus a snapshot collector over persisted results.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/pharma-enrich/internal/model"
)

const namespace = "pharma_enrich"

// Source call outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomePanic       = "panic"
	OutcomeBreakerOpen = "breaker_open"
)

// Metrics holds every collector registered by the service. All methods are
// safe on a nil receiver so tests can skip instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	sourceCalls    *prometheus.CounterVec
	sourceDuration *prometheus.HistogramVec
	sourceFields   *prometheus.CounterVec

	companiesTiered *prometheus.CounterVec
	bulkRuns        *prometheus.CounterVec
	bulkDuration    prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	storedResults *prometheus.GaugeVec
}

// NewMetrics creates a Metrics backed by a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		sourceCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_calls_total",
			Help:      "Source adapter calls by outcome.",
		}, []string{"source", "outcome"}),
		sourceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_duration_seconds",
			Help:      "Source adapter call latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"source"}),
		sourceFields: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fields_total",
			Help:      "Fields resolved by each source adapter.",
		}, []string{"source", "field"}),
		companiesTiered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "companies_tiered_total",
			Help:      "Companies classified, by assigned tier.",
		}, []string{"tier"}),
		bulkRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_runs_total",
			Help:      "Bulk enrichment runs by status.",
		}, []string{"status"}),
		bulkDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_duration_seconds",
			Help:      "Bulk enrichment run duration.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),
		storedResults: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_results",
			Help:      "Persisted bulk results by tier.",
		}, []string{"tier"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSource records one adapter call.
func (m *Metrics) ObserveSource(source, outcome string, d time.Duration, fields []model.Field) {
	if m == nil {
		return
	}
	m.sourceCalls.WithLabelValues(source, outcome).Inc()
	m.sourceDuration.WithLabelValues(source).Observe(d.Seconds())
	for _, f := range fields {
		m.sourceFields.WithLabelValues(source, string(f)).Inc()
	}
}

// ObserveTier counts one classified company.
func (m *Metrics) ObserveTier(tier model.Tier) {
	if m == nil {
		return
	}
	m.companiesTiered.WithLabelValues(string(tier)).Inc()
}

// ObserveBulk records a finished bulk run.
func (m *Metrics) ObserveBulk(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.bulkRuns.WithLabelValues(status).Inc()
	m.bulkDuration.Observe(d.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, statusText(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// SetStoredResults replaces the stored-results gauge with counts.
func (m *Metrics) SetStoredResults(counts map[model.Tier]int) {
	if m == nil {
		return
	}
	for _, tier := range model.Tiers() {
		m.storedResults.WithLabelValues(string(tier)).Set(float64(counts[tier]))
	}
}

func statusText(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
