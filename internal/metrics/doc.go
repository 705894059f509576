// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

/*
Package metrics provides Prometheus metrics collection and export for observability.

# Overview

The package instruments:
  - HTSP connection lifecycle and wire throughput
  - Request/response round trip latency and outcomes
  - Sync engine state, batch flushes, and notification volume
  - Channel icon cache fetches
  - Circuit breaker state transitions
  - HTTP API latency and throughput
  - Entity store write volume

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:9981/metrics

# Available Metrics

Connection metrics:
  - htsp_connections_opened_total: Successful socket opens (counter)
  - htsp_connection_failures_total: Tagged connection failures (counter)
    Labels: kind (interrupted, unresolved_address, socket_open,
    connect_timeout, connect_failed, io_error)
  - htsp_frames_sent_total / htsp_frames_received_total: Frame counts
  - htsp_bytes_sent_total / htsp_bytes_received_total: Wire volume

Request metrics:
  - htsp_requests_total: Round trips (counter)
    Labels: method, outcome (ok, timeout, canceled, not_connected)
  - htsp_request_duration_seconds: Round trip latency (histogram)
    Labels: method

Sync metrics:
  - sync_state: Engine state (gauge)
    Values: 0=not_started, 1=loading, 2=saving, 3=done
  - sync_initial_duration_seconds: Initial replay duration (histogram)
  - sync_pending_entities: Buffered entities awaiting flush (gauge)
    Labels: entity (channel, recording, program)
  - sync_entities_flushed_total: Batch flush volume (counter)
    Labels: entity
  - sync_notifications_total: Async notifications processed (counter)
    Labels: method
  - sync_programs_purged_total: Expired guide entries removed (counter)

Icon cache metrics:
  - icon_fetches_total: Icon fetch attempts (counter)
    Labels: transport (http, htsp), outcome (ok, cached, error)

Circuit breaker metrics:
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=open, 2=half-open

API metrics:
  - api_requests_total: HTTP requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint

Store metrics:
  - store_writes_total: Entity store writes (counter)
    Labels: entity, operation (put, batch, delete, delete_all)

# Thread Safety

All metric recording is thread-safe and designed for concurrent use from
multiple goroutines; the Prometheus client library handles synchronization
internally.

# Cardinality Management

Label values are drawn from small fixed sets: HTSP method names, entity kinds,
and normalized endpoint paths. No user- or channel-specific labels are used.
*/
package metrics
