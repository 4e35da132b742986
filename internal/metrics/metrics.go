// Package metrics holds the Prometheus instruments for origin fetches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds all Prometheus metrics on a dedicated registry.
type Metrics struct {
	registry      *prometheus.Registry
	fetchTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

// New creates and registers the fetch metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kstock_fetch_total",
				Help: "Total number of origin document fetches",
			},
			[]string{"document", "outcome"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kstock_fetch_duration_seconds",
				Help:    "Origin document fetch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"document"},
		),
	}
	m.registry.MustRegister(m.fetchTotal, m.fetchDuration)
	return m
}

// ObserveFetch records one fetch of the given document kind. Safe on a nil receiver.
func (m *Metrics) ObserveFetch(document, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetchTotal.WithLabelValues(document, outcome).Inc()
	m.fetchDuration.WithLabelValues(document).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
