// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package htsp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pvrmirror/pvrmirror/internal/logging"
	"github.com/pvrmirror/pvrmirror/internal/metrics"
)

// ConnState is the lifecycle state of a Connection.
type ConnState int32

const (
	// StateIdle is the initial state before Open.
	StateIdle ConnState = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateConnected means the socket is up and the pumps are running.
	StateConnected
	// StateClosing means Close has started tearing the connection down.
	StateClosing
	// StateClosed means the connection is fully shut down.
	StateClosed
	// StateFailed means the connection terminated with a tagged failure.
	StateFailed
)

// String returns the state name for logs and events.
func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateChange is delivered to the connection's state callback. Failure is
// FailureNone unless State is StateFailed.
type StateChange struct {
	State   ConnState
	Failure FailureKind
}

// Config holds the dial and request parameters of one connection.
type Config struct {
	Host string
	Port int

	// ConnectTimeout bounds Open. Default 5s.
	ConnectTimeout time.Duration

	// RequestTimeout bounds Invoke round trips. Default 5s.
	RequestTimeout time.Duration
}

const defaultTimeout = 5 * time.Second

// Connection owns one HTSP socket. A read pump accumulates bytes, decodes
// complete frames in order, and hands each to the dispatcher; a write pump
// drains the outbound queue one message per wakeup. Send never blocks. The
// connection's mutex guards only the seq counter, the queue, and the running
// flag, and is never held across socket I/O or handler invocation.
type Connection struct {
	cfg        Config
	id         string
	log        zerolog.Logger
	dispatcher *Dispatcher

	mu      sync.Mutex
	seq     int64
	queue   []*Message
	running bool
	conn    net.Conn

	wake      chan struct{}
	done      chan struct{}
	closeDone sync.Once

	state   atomic.Int32
	failure atomic.Int32
	stateFn func(StateChange)
}

// NewConnection creates a connection in StateIdle. stateFn may be nil; when
// set it is invoked synchronously for every state transition.
func NewConnection(cfg Config, stateFn func(StateChange)) *Connection {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultTimeout
	}
	id := uuid.NewString()[:8]
	return &Connection{
		cfg:        cfg,
		id:         id,
		log:        logging.With().Str("component", "htsp").Str("conn", id).Logger(),
		dispatcher: NewDispatcher(),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		stateFn:    stateFn,
	}
}

// ID returns the connection's short correlation id.
func (c *Connection) ID() string { return c.id }

// Dispatcher exposes the connection's dispatcher for listener registration.
func (c *Connection) Dispatcher() *Dispatcher { return c.dispatcher }

// State returns the current lifecycle state.
func (c *Connection) State() ConnState {
	return ConnState(c.state.Load())
}

// Failure returns the tagged failure kind, FailureNone unless StateFailed.
func (c *Connection) Failure() FailureKind {
	return FailureKind(c.failure.Load())
}

// IsConnected reports whether the pumps are running on an open socket.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Connection) setState(s ConnState) {
	c.state.Store(int32(s))
	change := StateChange{State: s, Failure: c.Failure()}
	c.log.Debug().Str("state", s.String()).Msg("Connection state change")
	if c.stateFn != nil {
		c.stateFn(change)
	}
}

// Open dials the backend. It blocks the caller, bounded by ConnectTimeout,
// until the socket is connected or the dial failed, then starts the read and
// write pumps. Errors are tagged *ConnError values.
func (c *Connection) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.setState(StateConnecting)

	if c.cfg.Port <= 0 || c.cfg.Port > 65535 {
		return c.connectFailed(FailureSocketOpen, fmt.Errorf("invalid port %d", c.cfg.Port))
	}

	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))
	c.log.Info().Str("addr", addr).Msg("Opening HTSP connection")

	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return c.connectFailed(classifyDialError(ctx, err), err)
	}

	c.mu.Lock()
	c.conn = conn
	c.running = true
	c.mu.Unlock()

	c.setState(StateConnected)
	metrics.ConnectionsOpened.Inc()

	go c.readPump()
	go c.writePump()
	return nil
}

func (c *Connection) connectFailed(kind FailureKind, err error) error {
	c.failure.Store(int32(kind))
	c.setState(StateFailed)
	metrics.ConnectionFailures.WithLabelValues(kind.String()).Inc()
	c.log.Error().Err(err).Str("failure", kind.String()).Msg("HTSP connect failed")
	return &ConnError{Kind: kind, Err: err}
}

func classifyDialError(ctx context.Context, err error) FailureKind {
	if ctx.Err() != nil {
		return FailureInterrupted
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureUnresolvedAddress
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureConnectTimeout
	}
	var addrErr *net.AddrError
	if errors.As(err, &addrErr) {
		return FailureSocketOpen
	}
	return FailureConnect
}

// Send enqueues a message that expects no reply and wakes the write pump.
// It returns immediately and never blocks on socket I/O.
func (c *Connection) Send(msg *Message) error {
	_, _, err := c.enqueue(msg, false)
	return err
}

// sendWithReply assigns the next seq, registers a single-use reply channel,
// and enqueues the message.
func (c *Connection) sendWithReply(msg *Message) (<-chan *Message, int64, error) {
	return c.enqueue(msg, true)
}

func (c *Connection) enqueue(msg *Message, withReply bool) (<-chan *Message, int64, error) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil, 0, ErrNotConnected
	}
	var ch <-chan *Message
	var seq int64
	if withReply {
		c.seq++
		seq = c.seq
		msg.Set("seq", seq)
		ch = c.dispatcher.Register(seq)
	}
	c.queue = append(c.queue, msg)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return ch, seq, nil
}

// Invoke performs a blocking request/response round trip bounded by the
// connection's RequestTimeout.
func (c *Connection) Invoke(ctx context.Context, req *Message) (*Message, error) {
	return c.InvokeTimeout(ctx, req, c.cfg.RequestTimeout)
}

// InvokeTimeout is Invoke with an explicit per-call timeout. The caller is
// released by the matching reply, by timeout expiry, by context cancellation,
// or immediately when Close drops the pending handlers.
func (c *Connection) InvokeTimeout(ctx context.Context, req *Message, timeout time.Duration) (*Message, error) {
	method := req.Method()
	start := time.Now()

	ch, seq, err := c.sendWithReply(req)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(method, "not_connected").Inc()
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply, ok := <-ch:
		if !ok {
			metrics.RequestsTotal.WithLabelValues(method, "canceled").Inc()
			return nil, fmt.Errorf("%s: %w", method, ErrNotConnected)
		}
		metrics.RequestsTotal.WithLabelValues(method, "ok").Inc()
		metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		return reply, nil
	case <-timer.C:
		c.dispatcher.Unregister(seq)
		metrics.RequestsTotal.WithLabelValues(method, "timeout").Inc()
		return nil, fmt.Errorf("%s: %w", method, ErrRequestTimeout)
	case <-ctx.Done():
		c.dispatcher.Unregister(seq)
		metrics.RequestsTotal.WithLabelValues(method, "canceled").Inc()
		return nil, ctx.Err()
	}
}

// Close tears the connection down: the outbound queue is dropped, every
// pending reply channel is closed so blocked callers fail fast with
// ErrNotConnected, and the socket is closed.
func (c *Connection) Close() {
	c.mu.Lock()
	wasRunning := c.running
	c.running = false
	c.queue = nil
	conn := c.conn
	c.mu.Unlock()

	if !wasRunning && c.State() != StateConnecting {
		return
	}

	c.setState(StateClosing)
	c.dispatcher.CancelAll()
	if conn != nil {
		if err := conn.Close(); err != nil {
			c.log.Debug().Err(err).Msg("Socket close")
		}
	}
	c.closeDone.Do(func() { close(c.done) })
	c.setState(StateClosed)
	c.log.Info().Msg("HTSP connection closed")
}

// fail terminates the connection from inside a pump: clean socket close
// first, then the tagged Failed state.
func (c *Connection) fail(kind FailureKind, err error) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.queue = nil
	conn := c.conn
	c.mu.Unlock()

	c.log.Error().Err(err).Str("failure", kind.String()).Msg("HTSP connection failed")
	metrics.ConnectionFailures.WithLabelValues(kind.String()).Inc()

	if conn != nil {
		_ = conn.Close()
	}
	c.dispatcher.CancelAll()
	c.closeDone.Do(func() { close(c.done) })
	c.failure.Store(int32(kind))
	c.setState(StateFailed)
}

// readPump accumulates inbound bytes and decodes as many complete frames as
// are available, dispatching each in arrival order. Malformed frames are
// skipped to tolerate protocol evolution; only a genuine I/O failure (or an
// insane length prefix) terminates the pump.
func (c *Connection) readPump() {
	buf := make([]byte, 0, 32*1024)
	chunk := make([]byte, 16*1024)

	for {
		n, err := c.connRead(chunk)
		if n > 0 {
			metrics.BytesReceived.Add(float64(n))
			buf = append(buf, chunk[:n]...)
			for {
				msg, consumed, derr := Decode(buf)
				if derr != nil {
					if errors.Is(derr, ErrFrameTooLarge) {
						c.fail(FailureIO, derr)
						return
					}
					c.log.Debug().Err(derr).Msg("Skipping malformed frame")
					buf = buf[consumed:]
					continue
				}
				if msg == nil {
					break
				}
				buf = buf[consumed:]
				metrics.FramesReceived.Inc()
				c.dispatcher.Dispatch(msg)
			}
		}
		if err != nil {
			if !c.IsConnected() {
				return
			}
			c.fail(FailureIO, err)
			return
		}
	}
}

func (c *Connection) connRead(p []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return 0, ErrNotConnected
	}
	return conn.Read(p)
}

// writePump writes one queued message per iteration until the queue is
// drained, then sleeps until the next wakeup or shutdown.
func (c *Connection) writePump() {
	for {
		select {
		case <-c.wake:
		case <-c.done:
			return
		}

		for {
			c.mu.Lock()
			if !c.running || len(c.queue) == 0 {
				c.mu.Unlock()
				break
			}
			msg := c.queue[0]
			c.queue = c.queue[1:]
			conn := c.conn
			c.mu.Unlock()

			frame, err := Encode(msg)
			if err != nil {
				c.log.Error().Err(err).Str("method", msg.Method()).Msg("Dropping unencodable message")
				continue
			}
			if _, err := conn.Write(frame); err != nil {
				if c.IsConnected() {
					c.fail(FailureIO, err)
				}
				return
			}
			metrics.BytesSent.Add(float64(len(frame)))
			metrics.FramesSent.Inc()
		}
	}
}
