// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

// Package api serves the mirrored PVR state and forwards DVR commands to
// the backend over HTTP.
//
// Reads (channels, tags, recordings, guide, status) come straight from the
// local replica and keep working while the backend is unreachable. Writes
// (scheduling, rules, tickets) need the live session; without one they
// fail with 503 BACKEND_UNAVAILABLE.
//
// Routing uses chi with per-group httprate limits; every response uses the
// models.APIResponse envelope.
package api
