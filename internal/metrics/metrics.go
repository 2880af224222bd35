// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskforge"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// kind is one of not_found, unauthorized, forbidden, bad_request
	AuthzDenialsTotal *prometheus.CounterVec

	// trigger is the mutation that caused the recomputation
	ProgressRecalculationsTotal *prometheus.CounterVec
	ReconcileRunsTotal          *prometheus.CounterVec
}

// New creates the collectors and registers them, along with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthzDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "authz_denials_total",
				Help:      "Requests rejected by the authorization engine, by failure kind",
			},
			[]string{"kind"},
		),
		ProgressRecalculationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "progress_recalculations_total",
				Help:      "Project progress recomputations, by trigger",
			},
			[]string{"trigger"},
		),
		ReconcileRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "progress_reconcile_jobs_total",
				Help:      "Progress reconcile jobs processed, by result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDenialsTotal,
		m.ProgressRecalculationsTotal,
		m.ReconcileRunsTotal,
	)
	return m
}

// RegisterDB exports connection pool statistics for db.
func (m *Metrics) RegisterDB(db *sql.DB) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(collectors.NewDBStatsCollector(db, namespace))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveDenial(kind string) {
	if m == nil {
		return
	}
	m.AuthzDenialsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveRecalculation(trigger string) {
	if m == nil {
		return
	}
	m.ProgressRecalculationsTotal.WithLabelValues(trigger).Inc()
}

func (m *Metrics) ObserveReconcile(result string) {
	if m == nil {
		return
	}
	m.ReconcileRunsTotal.WithLabelValues(result).Inc()
}
