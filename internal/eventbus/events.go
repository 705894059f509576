// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

// Package eventbus distributes lifecycle and sync events over an in-process
// pub/sub. Subscribers (the HTTP API, log tails, tests) observe connection,
// authentication, and sync transitions without coupling to the components
// that produce them.
package eventbus

import (
	"time"

	"github.com/pvrmirror/pvrmirror/internal/models"
)

// Topics.
const (
	TopicConnection   = "pvr.connection"
	TopicAuth         = "pvr.auth"
	TopicSync         = "pvr.sync"
	TopicServerStatus = "pvr.server_status"
	TopicDvrResult    = "pvr.dvr_result"
)

// ConnectionEvent reports a connection state transition.
type ConnectionEvent struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state"`
	Failure   string    `json:"failure,omitempty"` // set when state is "failed"
}

// AuthEvent reports an authentication state transition.
type AuthEvent struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state"`
}

// SyncEvent reports a sync engine transition together with the current
// replica counts.
type SyncEvent struct {
	EventID   string              `json:"event_id"`
	Timestamp time.Time           `json:"timestamp"`
	State     string              `json:"state"`
	Progress  models.SyncProgress `json:"progress"`
}

// ServerStatusEvent carries a refreshed backend snapshot.
type ServerStatusEvent struct {
	EventID   string              `json:"event_id"`
	Timestamp time.Time           `json:"timestamp"`
	Status    models.ServerStatus `json:"status"`
}

// DvrResultEvent reports the outcome of a DVR command issued to the backend.
type DvrResultEvent struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"` // e.g. "addDvrEntry", "deleteAutorecEntry"
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"` // backend-supplied reason when Success is false
}
