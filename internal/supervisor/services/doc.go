// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

// Package services adapts the application's long-running components to
// suture's Serve lifecycle.
//
// The central one is SessionService, which runs one complete backend
// session per Serve call: dial, authenticate, replay metadata, probe
// status. Returning an error hands control back to the supervisor, whose
// backoff restart doubles as the reconnect policy.
package services
