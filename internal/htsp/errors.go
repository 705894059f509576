// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package htsp

import (
	"errors"
	"fmt"
)

// FailureKind tags the terminal failure modes of a connection.
type FailureKind int

const (
	// FailureNone means the connection has not failed.
	FailureNone FailureKind = iota
	// FailureInterrupted means the connect attempt was canceled.
	FailureInterrupted
	// FailureUnresolvedAddress means the host did not resolve.
	FailureUnresolvedAddress
	// FailureSocketOpen means the socket could not be opened.
	FailureSocketOpen
	// FailureConnectTimeout means the connect attempt timed out.
	FailureConnectTimeout
	// FailureConnect covers any other connect-phase error.
	FailureConnect
	// FailureIO means an I/O error or remote close terminated the loop.
	FailureIO
)

// String returns the failure kind name for logs and events.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureInterrupted:
		return "interrupted"
	case FailureUnresolvedAddress:
		return "unresolved_address"
	case FailureSocketOpen:
		return "socket_open"
	case FailureConnectTimeout:
		return "connect_timeout"
	case FailureConnect:
		return "connect_failed"
	case FailureIO:
		return "io_error"
	default:
		return "unknown"
	}
}

// ConnError is a terminal connection failure with its tagged kind.
type ConnError struct {
	Kind FailureKind
	Err  error
}

func (e *ConnError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("htsp: connection failed (%s)", e.Kind)
	}
	return fmt.Sprintf("htsp: connection failed (%s): %v", e.Kind, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// Request errors are local to one call: the caller logs or surfaces them, the
// connection keeps running (except ErrNotConnected, which reports that it
// already stopped).
var (
	// ErrNotConnected is returned by send paths when the connection is not
	// open, and delivered to blocked callers when Close drops their pending
	// replies (fail-fast cancellation).
	ErrNotConnected = errors.New("htsp: not connected")

	// ErrRequestTimeout is returned when no reply arrived within the
	// request timeout.
	ErrRequestTimeout = errors.New("htsp: request timed out")
)

// Authentication errors, terminal for the session.
var (
	// ErrBadCredentials is returned when the server answers the digest with
	// noaccess=1.
	ErrBadCredentials = errors.New("htsp: authentication rejected (bad credentials)")

	// ErrAuthTimeout is returned when the handshake got no reply in time.
	ErrAuthTimeout = errors.New("htsp: authentication timed out")
)
