package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one registry. Construct it once in main and
// pass it to the middleware and handlers that record into it.
type Metrics struct {
	registry *prometheus.Registry

	// RequestDuration tracks HTTP request duration in seconds by method, route, status.
	RequestDuration *prometheus.HistogramVec
	// RequestTotal counts HTTP requests by method, route, status.
	RequestTotal *prometheus.CounterVec

	// LoginAttempts counts login outcomes: success, invalid, error.
	LoginAttempts *prometheus.CounterVec
	// TokenValidations counts token checks by result: ok or a rejection reason.
	TokenValidations *prometheus.CounterVec
	// RateLimited counts requests rejected by a rate limiter scope (login, global).
	RateLimited *prometheus.CounterVec
}

// New creates the collectors and registers them, plus Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		RequestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_attempts_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		TokenValidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_token_validations_total",
				Help: "Access token validations by result",
			},
			[]string{"result"},
		),
		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_rate_limited_total",
				Help: "Requests rejected by a rate limiter",
			},
			[]string{"scope"},
		),
	}
	m.registry.MustRegister(
		m.RequestDuration, m.RequestTotal,
		m.LoginAttempts, m.TokenValidations, m.RateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest records duration and count for an HTTP request. route should be
// the matched route pattern, not the raw path, to keep cardinality bounded.
func (m *Metrics) RecordRequest(method, route string, statusCode int, durationSeconds float64) {
	if m == nil {
		return
	}
	status := strconv.Itoa(statusCode)
	m.RequestDuration.WithLabelValues(method, route, status).Observe(durationSeconds)
	m.RequestTotal.WithLabelValues(method, route, status).Inc()
}

// IncLogin records a login outcome.
func (m *Metrics) IncLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// IncTokenValidation records a token check outcome.
func (m *Metrics) IncTokenValidation(result string) {
	if m == nil {
		return
	}
	m.TokenValidations.WithLabelValues(result).Inc()
}

// IncRateLimited records a request rejected by the named limiter.
func (m *Metrics) IncRateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(scope).Inc()
}
