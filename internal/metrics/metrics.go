// Package metrics holds the Prometheus collectors for credential
// verification, key lifecycle and the audit trail.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Validation results used as the "result" label.
const (
	ResultSuccess = "success"
	ResultInvalid = "invalid"
	ResultEmpty   = "empty"
	ResultError   = "error"
)

// Metrics holds every collector keywarden exposes. Each instance owns its
// registry so tests can create as many as they like.
type Metrics struct {
	validationTotal    *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
	keysCreated        *prometheus.CounterVec
	keysDeleted        prometheus.Counter
	auditEntries       prometheus.Counter
	auditWriteFailures prometheus.Counter
	httpRequests       *prometheus.CounterVec
	registry           *prometheus.Registry
}

// New creates a Metrics instance registered under namespace (default
// "keywarden"), including Go runtime and process collectors.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "keywarden"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.validationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "validations_total",
			Help:      "Total number of API key resolution attempts",
		},
		[]string{"result"},
	)

	// bcrypt dominates resolution time, and it grows with the number of keys.
	m.validationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "validation_duration_seconds",
			Help:      "API key resolution duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"result"},
	)

	m.keysCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_created_total",
			Help:      "Total number of API keys issued",
		},
		[]string{"tier"},
	)

	m.keysDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_deleted_total",
			Help:      "Total number of API keys deleted",
		},
	)

	m.auditEntries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_total",
			Help:      "Total number of audit entries written",
		},
	)

	m.auditWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Total number of audit entries that could not be persisted",
		},
	)

	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status",
		},
		[]string{"method", "status"},
	)

	m.registry.MustRegister(
		m.validationTotal,
		m.validationDuration,
		m.keysCreated,
		m.keysDeleted,
		m.auditEntries,
		m.auditWriteFailures,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.init()
	return m
}

// init pre-creates label combinations so the series appear in /metrics
// before the first event.
func (m *Metrics) init() {
	for _, result := range []string{ResultSuccess, ResultInvalid, ResultEmpty, ResultError} {
		m.validationTotal.WithLabelValues(result)
		m.validationDuration.WithLabelValues(result)
	}
	for _, tier := range []string{"admin", "regular"} {
		m.keysCreated.WithLabelValues(tier)
	}
}

// RecordValidation records one credential resolution. All Record methods
// are no-ops on a nil *Metrics.
func (m *Metrics) RecordValidation(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.validationTotal.WithLabelValues(result).Inc()
	m.validationDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordKeyCreated records an issued key of the given tier.
func (m *Metrics) RecordKeyCreated(tier string) {
	if m == nil {
		return
	}
	m.keysCreated.WithLabelValues(tier).Inc()
}

// RecordKeyDeleted records a deleted key.
func (m *Metrics) RecordKeyDeleted() {
	if m == nil {
		return
	}
	m.keysDeleted.Inc()
}

// RecordAuditEntry records a persisted audit entry.
func (m *Metrics) RecordAuditEntry() {
	if m == nil {
		return
	}
	m.auditEntries.Inc()
}

// RecordAuditFailure records an audit entry that could not be persisted.
func (m *Metrics) RecordAuditFailure() {
	if m == nil {
		return
	}
	m.auditWriteFailures.Inc()
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
