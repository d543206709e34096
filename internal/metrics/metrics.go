package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll outcomes
const (
	PollOK            = "ok"
	PollFailed        = "failed"
	PollUpstreamError = "upstream_error"
	PollMalformed     = "malformed"
	PollSkipped       = "skipped"
)

// Command outcomes
const (
	CommandApplied  = "applied"
	CommandRejected = "rejected"
)

var (
	TelemetryPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_polls_total",
			Help: "Telemetry poll cycles by outcome",
		},
		[]string{"outcome"},
	)

	TelemetryRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "telemetry_request_duration_seconds",
			Help:    "Latency of telemetry status requests",
			Buckets: []float64{.005, .01, .025, .05, .1, .2, .5, 1, 2},
		},
	)

	DraftCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draft_commands_total",
			Help: "Draft commands by type and outcome",
		},
		[]string{"command", "outcome"},
	)

	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connected_clients",
			Help: "Currently connected websocket clients",
		},
	)
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
