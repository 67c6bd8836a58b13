package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowmod_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowmod_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	// Collaborator metrics
	DirectoryFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowmod_directory_fetch_total",
			Help: "External directory lookups by outcome",
		},
		[]string{"outcome"}, // "ok", "error", "open"
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowmod_cache_lookups_total",
			Help: "Derived view cache lookups",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)

	// Business metrics
	MessagesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowmod_messages_ingested_total",
			Help: "Messages appended to the store",
		},
		[]string{"sender_channel"},
	)
)
