// Package metrics exposes login, recovery and rate-limit counters for
// Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	LoginAttempts      *prometheus.CounterVec
	RecoveryAttempts   *prometheus.CounterVec
	RateLimited        *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a private registry with the Go and process collectors plus the
// service metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := NewMetrics(registry)
	m.registry = registry
	return m
}

// NewMetrics creates the service metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_service_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		RecoveryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_service_recovery_attempts_total",
				Help: "Password recovery attempts by outcome",
			},
			[]string{"outcome"},
		),
		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_service_rate_limited_total",
				Help: "Requests rejected by a rate-limit policy",
			},
			[]string{"policy"},
		),
		HTTPRequestSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "login_service_http_request_duration_seconds",
				Help:    "HTTP request latency by route and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	reg.MustRegister(m.LoginAttempts)
	reg.MustRegister(m.RecoveryAttempts)
	reg.MustRegister(m.RateLimited)
	reg.MustRegister(m.HTTPRequestSeconds)

	return m
}

func (m *Metrics) RecordLogin(outcome string) {
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRecovery(outcome string) {
	m.RecoveryAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRateLimited(policy string) {
	m.RateLimited.WithLabelValues(policy).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, duration time.Duration) {
	m.HTTPRequestSeconds.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// Handler serves the registry created by New. Metrics built with NewMetrics
// against another registerer fall back to the default gatherer.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
