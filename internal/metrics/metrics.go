// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection Metrics
	ConnectionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "htsp_connections_opened_total",
			Help: "Total number of HTSP connections successfully opened",
		},
	)

	ConnectionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "htsp_connection_failures_total",
			Help: "Total number of HTSP connection failures",
		},
		[]string{"kind"}, // "interrupted", "unresolved_address", "socket_open", "connect_timeout", "connect_failed", "io_error"
	)

	FramesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "htsp_frames_sent_total",
			Help: "Total number of HTSP frames written to the socket",
		},
	)

	FramesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "htsp_frames_received_total",
			Help: "Total number of HTSP frames decoded from the socket",
		},
	)

	BytesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "htsp_bytes_sent_total",
			Help: "Total bytes written to the HTSP socket",
		},
	)

	BytesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "htsp_bytes_received_total",
			Help: "Total bytes read from the HTSP socket",
		},
	)

	// Request Metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "htsp_requests_total",
			Help: "Total number of HTSP request/response round trips",
		},
		[]string{"method", "outcome"}, // outcome: "ok", "timeout", "canceled", "not_connected"
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "htsp_request_duration_seconds",
			Help:    "HTSP request round trip duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method"},
	)

	// Sync Metrics
	SyncState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_state",
			Help: "Current sync engine state (0=not_started, 1=loading, 2=saving, 3=done)",
		},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_initial_duration_seconds",
			Help:    "Duration of the initial async metadata replay in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SyncPendingEntities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_pending_entities",
			Help: "Entities buffered during the initial load, awaiting a batch flush",
		},
		[]string{"entity"}, // "channel", "recording", "program"
	)

	SyncEntitiesFlushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_entities_flushed_total",
			Help: "Total entities written to the store in batch flushes",
		},
		[]string{"entity"},
	)

	SyncNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_notifications_total",
			Help: "Total async notifications processed by the sync engine",
		},
		[]string{"method"},
	)

	ProgramsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_programs_purged_total",
			Help: "Total expired guide programs removed by the retention purge",
		},
	)

	// Icon Cache Metrics
	IconFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icon_fetches_total",
			Help: "Total channel icon fetch attempts",
		},
		[]string{"transport", "outcome"}, // transport: "http", "htsp"; outcome: "ok", "cached", "error"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Store Metrics
	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_writes_total",
			Help: "Total entity store write operations",
		},
		[]string{"entity", "operation"}, // operation: "put", "batch", "delete", "delete_all"
	)
)

// RecordSyncState maps an engine state ordinal to the sync_state gauge.
func RecordSyncState(state int) {
	SyncState.Set(float64(state))
}

// RecordCircuitBreakerState maps a gobreaker state to its gauge value.
// gobreaker orders states closed=0, half-open=1, open=2; the gauge follows the
// conventional 0=closed, 1=open, 2=half-open encoding instead.
func RecordCircuitBreakerState(name string, open, halfOpen bool) {
	v := 0.0
	switch {
	case open:
		v = 1
	case halfOpen:
		v = 2
	}
	CircuitBreakerState.WithLabelValues(name).Set(v)
}
