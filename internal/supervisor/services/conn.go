// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package services

import (
	"context"
	stdsync "sync"

	"github.com/pvrmirror/pvrmirror/internal/htsp"
	"github.com/pvrmirror/pvrmirror/internal/sync"
)

// SessionConn is a stable handle over whatever backend connection the
// session service currently holds. Workers built before the first
// session (the icon cache) keep this handle across reconnects; while no
// session is up, calls fail with htsp.ErrNotConnected.
type SessionConn struct {
	mu   stdsync.RWMutex
	conn sync.Conn
}

// NewSessionConn returns an unbound handle.
func NewSessionConn() *SessionConn {
	return &SessionConn{}
}

func (c *SessionConn) set(conn sync.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *SessionConn) current() (sync.Conn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return nil, htsp.ErrNotConnected
	}
	return c.conn, nil
}

// Send implements sync.Conn.
func (c *SessionConn) Send(msg *htsp.Message) error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	return conn.Send(msg)
}

// Invoke implements sync.Conn.
func (c *SessionConn) Invoke(ctx context.Context, req *htsp.Message) (*htsp.Message, error) {
	conn, err := c.current()
	if err != nil {
		return nil, err
	}
	return conn.Invoke(ctx, req)
}

// FetchFile implements sync.Conn.
func (c *SessionConn) FetchFile(ctx context.Context, path string) ([]byte, error) {
	conn, err := c.current()
	if err != nil {
		return nil, err
	}
	return conn.FetchFile(ctx, path)
}
