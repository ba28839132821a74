// Package metrics defines the Prometheus collectors exported by warden.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Authentication outcomes recorded on AuthAttempts.
const (
	OutcomeSkipped         = "skipped"
	OutcomeAuthenticated   = "authenticated"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeError           = "error"
)

var (
	// RequestsTotal counts handled requests by method and status code.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records request latency in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warden_request_duration_seconds",
			Help:    "Request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// AuthAttempts counts authenticator runs by scheme and outcome.
	AuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_auth_attempts_total",
			Help: "Authentication attempts",
		},
		[]string{"scheme", "outcome"},
	)

	// SessionWrites counts session write-backs by operation (save, clear).
	SessionWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_session_writes_total",
			Help: "Session write-backs",
		},
		[]string{"operation"},
	)

	// StorageShutdownFailures counts failed storage shutdown hooks.
	StorageShutdownFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_storage_shutdown_failures_total",
			Help: "Failed storage shutdown hooks",
		},
		[]string{"value_type"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AuthAttempts,
		SessionWrites,
		StorageShutdownFailures,
	)
}

// Handler exposes the default registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
