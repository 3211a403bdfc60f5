package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "resourcectl"

// Metrics holds every collector the lifecycle manager reports to.
type Metrics struct {
	registry *prometheus.Registry

	operationsTotal    *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	operationsInFlight *prometheus.GaugeVec
	cacheLookups       *prometheus.CounterVec
	resourcesByStatus  *prometheus.GaugeVec
	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of settled resource operations",
			},
			[]string{"operation", "outcome"},
		),

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of resource operations in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),

		operationsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "operations_in_flight",
				Help:      "Number of resource operations currently loading",
			},
			[]string{"operation"},
		),

		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "object_cache",
				Name:      "lookups_total",
				Help:      "Object cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),

		resourcesByStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "resource",
				Name:      "count",
				Help:      "Number of registered resources by execution status",
			},
			[]string{"status"},
		),

		apiRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total number of backend API requests",
			},
			[]string{"method", "status"},
		),

		apiRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Backend API request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OperationStarted marks an operation as loading.
func (m *Metrics) OperationStarted(op string) {
	m.operationsInFlight.WithLabelValues(op).Inc()
}

// OperationSettled records the outcome of an operation started with
// OperationStarted.
func (m *Metrics) OperationSettled(op, outcome string, duration time.Duration) {
	m.operationsInFlight.WithLabelValues(op).Dec()
	m.operationsTotal.WithLabelValues(op, outcome).Inc()
	m.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordCacheLookup records a hit or miss on one of the object caches.
func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// SetResourceCounts replaces the per-status resource gauge.
func (m *Metrics) SetResourceCounts(counts map[string]int) {
	m.resourcesByStatus.Reset()
	for status, n := range counts {
		m.resourcesByStatus.WithLabelValues(status).Set(float64(n))
	}
}

// transport wraps an http.RoundTripper to record API request metrics
type transport struct {
	next http.RoundTripper
	m    *Metrics
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	t.m.apiRequestsTotal.WithLabelValues(req.Method, status).Inc()
	t.m.apiRequestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	return resp, err
}

// Transport returns a RoundTripper that records metrics for every request
// sent through next. A nil next uses http.DefaultTransport.
func (m *Metrics) Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &transport{next: next, m: m}
}
