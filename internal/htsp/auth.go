// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package htsp

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pvrmirror/pvrmirror/internal/logging"
)

// AuthState is the lifecycle state of the handshake.
type AuthState int32

const (
	AuthIdle AuthState = iota
	AuthAuthenticating
	AuthAuthenticated
	AuthFailedBadCredentials
	AuthFailed
)

func (s AuthState) String() string {
	switch s {
	case AuthIdle:
		return "idle"
	case AuthAuthenticating:
		return "authenticating"
	case AuthAuthenticated:
		return "authenticated"
	case AuthFailedBadCredentials:
		return "failed_bad_credentials"
	case AuthFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ClientInfo identifies this client in the hello exchange.
type ClientInfo struct {
	Name            string
	Version         string
	ProtocolVersion int64
}

// ServerInfo captures what the backend reported during hello.
type ServerInfo struct {
	Name            string
	Version         string
	ProtocolVersion int64
	Webroot         string
	Challenge       []byte
}

// Authenticator runs the two-step handshake on an open connection: hello to
// learn the server's identity, capabilities, and challenge, then authenticate
// with the SHA-1 digest of password and challenge. Both round trips are
// bounded by the auth timeout.
type Authenticator struct {
	conn     *Connection
	username string
	password string
	client   ClientInfo
	timeout  time.Duration
	log      zerolog.Logger

	state   atomic.Int32
	stateFn func(AuthState)
}

// NewAuthenticator creates an authenticator for conn. stateFn may be nil.
func NewAuthenticator(conn *Connection, username, password string, client ClientInfo, stateFn func(AuthState)) *Authenticator {
	return &Authenticator{
		conn:     conn,
		username: username,
		password: password,
		client:   client,
		timeout:  defaultTimeout,
		log:      logging.With().Str("component", "htsp-auth").Str("conn", conn.ID()).Logger(),
		stateFn:  stateFn,
	}
}

// State returns the current handshake state.
func (a *Authenticator) State() AuthState {
	return AuthState(a.state.Load())
}

func (a *Authenticator) setState(s AuthState) {
	a.state.Store(int32(s))
	a.log.Debug().Str("state", s.String()).Msg("Auth state change")
	if a.stateFn != nil {
		a.stateFn(s)
	}
}

// Authenticate performs the handshake. It returns the server info from hello
// even when the credential check fails, so callers can still report what they
// connected to. Bad credentials yield ErrBadCredentials; a stalled round trip
// yields ErrAuthTimeout.
func (a *Authenticator) Authenticate(ctx context.Context) (*ServerInfo, error) {
	a.setState(AuthAuthenticating)

	hello := NewRequest("hello").
		Set("htspversion", a.client.ProtocolVersion).
		Set("clientname", a.client.Name).
		Set("clientversion", a.client.Version).
		Set("username", a.username)

	reply, err := a.conn.InvokeTimeout(ctx, hello, a.timeout)
	if err != nil {
		a.setState(AuthFailed)
		if errors.Is(err, ErrRequestTimeout) {
			return nil, fmt.Errorf("hello: %w", ErrAuthTimeout)
		}
		return nil, fmt.Errorf("hello: %w", err)
	}

	info := &ServerInfo{
		Name:            reply.GetStr("servername", ""),
		Version:         reply.GetStr("serverversion", ""),
		ProtocolVersion: reply.GetInt64("htspversion", 0),
		Webroot:         reply.GetStr("webroot", ""),
		Challenge:       reply.GetBin("challenge"),
	}
	a.log.Info().
		Str("server", info.Name).
		Str("version", info.Version).
		Int64("protocol", info.ProtocolVersion).
		Msg("HTSP hello complete")

	auth := NewRequest("authenticate").
		Set("username", a.username).
		Set("digest", digest(a.password, info.Challenge))

	reply, err = a.conn.InvokeTimeout(ctx, auth, a.timeout)
	if err != nil {
		a.setState(AuthFailed)
		if errors.Is(err, ErrRequestTimeout) {
			return info, fmt.Errorf("authenticate: %w", ErrAuthTimeout)
		}
		return info, fmt.Errorf("authenticate: %w", err)
	}

	if reply.GetInt64("noaccess", 0) == 1 {
		a.setState(AuthFailedBadCredentials)
		return info, ErrBadCredentials
	}

	a.setState(AuthAuthenticated)
	a.log.Info().Str("username", a.username).Msg("HTSP authentication complete")
	return info, nil
}

// digest computes the HTSP credential proof: SHA-1 over the password bytes
// followed by the server challenge.
func digest(password string, challenge []byte) []byte {
	h := sha1.New()
	h.Write([]byte(password))
	h.Write(challenge)
	return h.Sum(nil)
}
