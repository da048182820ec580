// Package metrics provides Prometheus instrumentation for the jsenv server.
//
// All metrics are registered in a custom [prometheus.Registry] (not the global
// default) so that only jsenv metrics appear on the /metrics endpoint.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors used by the jsenv server.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	TransformsTotal     *prometheus.CounterVec
	TransformDuration   *prometheus.HistogramVec
	VersionChecksTotal  *prometheus.CounterVec
	LatestVersion       *prometheus.GaugeVec
	AuthFailuresTotal   prometheus.Counter
}

// New creates and registers all jsenv metrics in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jsenv_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jsenv_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		TransformsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jsenv_transforms_total",
			Help: "Total number of transform calls.",
		}, []string{"engine", "result"}),

		TransformDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jsenv_transform_duration_seconds",
			Help:    "Transform latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"engine"}),

		VersionChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jsenv_version_checks_total",
			Help: "Total number of latest Babel version lookups.",
		}, []string{"result"}),

		LatestVersion: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jsenv_latest_babel_version_info",
			Help: "Latest Babel version seen on npm, as a label.",
		}, []string{"version"}),

		AuthFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jsenv_auth_failures_total",
			Help: "Total number of failed authentication attempts.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TransformsTotal,
		m.TransformDuration,
		m.VersionChecksTotal,
		m.LatestVersion,
		m.AuthFailuresTotal,
	)

	return m
}

// Handler returns an [http.Handler] that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument wraps next, recording count and latency under route.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		status := strconv.Itoa(rec.status)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

// RecordTransform counts one transform and its latency.
func (m *Metrics) RecordTransform(engine string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.TransformsTotal.WithLabelValues(engine, result).Inc()
	m.TransformDuration.WithLabelValues(engine).Observe(elapsed.Seconds())
}

// RecordVersionCheck counts a latest-version lookup and, on success, exposes
// the version it found.
func (m *Metrics) RecordVersionCheck(version string, err error) {
	if err != nil {
		m.VersionChecksTotal.WithLabelValues("error").Inc()
		return
	}
	m.VersionChecksTotal.WithLabelValues("ok").Inc()
	m.LatestVersion.Reset()
	m.LatestVersion.WithLabelValues(version).Set(1)
}

// IncAuthFailures increments the auth failure counter.
func (m *Metrics) IncAuthFailures() {
	m.AuthFailuresTotal.Inc()
}
