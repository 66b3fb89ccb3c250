package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_http_requests_total",
			Help: "HTTP requests served, by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutor_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// ServiceOperations counts tutor service calls by outcome:
	// ok, invalid_input, not_found, duplicate_email or error.
	ServiceOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_service_operations_total",
			Help: "Tutor service operations by outcome",
		},
		[]string{"operation", "outcome"},
	)
)
