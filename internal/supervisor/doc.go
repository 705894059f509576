// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

// Package supervisor builds the suture supervision tree that keeps the
// backend session, background workers, and HTTP API running.
//
// Layers:
//
//	pvrmirror (root)
//	├── session-layer   HTSP connection + sync engine
//	├── worker-layer    icon cache, guide purge, store GC
//	└── api-layer       local HTTP server
//
// A failure in one layer restarts only that layer's services. The session
// layer relies on this deliberately: SessionService returns an error when
// the connection drops, and the supervisor's backoff restart is the
// reconnect loop.
package supervisor
