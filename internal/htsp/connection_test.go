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
	"testing"
	"time"
)

// stubServer is a minimal HTSP peer backed by a real TCP listener. The
// handler receives every decoded request; a nil return sends no reply.
type stubServer struct {
	t      *testing.T
	ln     net.Listener
	handle func(*Message) *Message

	mu    sync.Mutex
	conns []net.Conn
	done  chan struct{}
}

func newStubServer(t *testing.T, handle func(*Message) *Message) *stubServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &stubServer{t: t, ln: ln, handle: handle, done: make(chan struct{})}
	go s.acceptLoop()
	t.Cleanup(s.close)
	return s
}

func (s *stubServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.serve(conn)
	}
}

func (s *stubServer) serve(conn net.Conn) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				msg, consumed, derr := Decode(buf)
				if derr != nil || msg == nil {
					break
				}
				buf = buf[consumed:]
				if s.handle == nil {
					continue
				}
				if reply := s.handle(msg); reply != nil {
					if seq, ok := msg.Seq(); ok {
						reply.Set("seq", seq)
					}
					s.write(conn, reply)
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *stubServer) write(conn net.Conn, msg *Message) {
	frame, err := Encode(msg)
	if err != nil {
		s.t.Errorf("stub encode: %v", err)
		return
	}
	if _, err := conn.Write(frame); err != nil {
		select {
		case <-s.done:
		default:
			s.t.Logf("stub write: %v", err)
		}
	}
}

// push sends an unsolicited message over every accepted connection.
func (s *stubServer) push(msg *Message) {
	s.mu.Lock()
	conns := append([]net.Conn(nil), s.conns...)
	s.mu.Unlock()
	for _, c := range conns {
		s.write(c, msg)
	}
}

// dropConns closes the accepted sockets without closing the listener.
func (s *stubServer) dropConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (s *stubServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *stubServer) close() {
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)
	s.ln.Close()
	s.dropConns()
}

func dialStub(t *testing.T, s *stubServer, cfg Config, stateFn func(StateChange)) *Connection {
	t.Helper()
	cfg.Host = "127.0.0.1"
	cfg.Port = s.port()
	conn := NewConnection(cfg, stateFn)
	if err := conn.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(conn.Close)
	return conn
}

func TestConnectionInvoke(t *testing.T) {
	srv := newStubServer(t, func(req *Message) *Message {
		if req.Method() != "getSysTime" {
			t.Errorf("unexpected method %q", req.Method())
		}
		return NewMessage().Set("time", int64(1700000000)).Set("timezone", int64(60))
	})
	conn := dialStub(t, srv, Config{}, nil)

	reply, err := conn.Invoke(context.Background(), NewRequest("getSysTime"))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := reply.GetInt64("time", 0); got != 1700000000 {
		t.Errorf("time = %d, want 1700000000", got)
	}
}

func TestConnectionConcurrentInvokes(t *testing.T) {
	srv := newStubServer(t, func(req *Message) *Message {
		// Echo the request's marker back so mismatched correlation shows up.
		return NewMessage().Set("marker", req.GetInt64("marker", -1))
	})
	conn := dialStub(t, srv, Config{}, nil)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(marker int64) {
			defer wg.Done()
			req := NewRequest("ping").Set("marker", marker)
			reply, err := conn.Invoke(context.Background(), req)
			if err != nil {
				errs <- err
				return
			}
			if got := reply.GetInt64("marker", -1); got != marker {
				errs <- fmt.Errorf("marker %d got reply for %d", marker, got)
			}
		}(int64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestConnectionBroadcastsUnsolicited(t *testing.T) {
	srv := newStubServer(t, nil)
	conn := dialStub(t, srv, Config{}, nil)

	got := make(chan *Message, 1)
	conn.Dispatcher().AddListener(func(m *Message) {
		select {
		case got <- m:
		default:
		}
	})

	srv.push(NewRequest("channelAdd").Set("channelId", int64(5)))

	select {
	case m := <-got:
		if m.Method() != "channelAdd" || m.GetInt64("channelId", 0) != 5 {
			t.Errorf("listener got %s", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener never received the pushed message")
	}
}

func TestConnectionCloseFailsFastPendingRequests(t *testing.T) {
	received := make(chan struct{}, 1)
	srv := newStubServer(t, func(req *Message) *Message {
		received <- struct{}{}
		return nil // never reply, leave the caller blocked
	})
	conn := dialStub(t, srv, Config{RequestTimeout: time.Minute}, nil)

	result := make(chan error, 1)
	go func() {
		_, err := conn.Invoke(context.Background(), NewRequest("getDiskSpace"))
		result <- err
	}()

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the request")
	}
	conn.Close()

	select {
	case err := <-result:
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("pending Invoke err = %v, want ErrNotConnected", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending Invoke did not fail fast after Close")
	}
	if got := conn.Dispatcher().PendingCount(); got != 0 {
		t.Errorf("pending handlers after Close = %d, want 0", got)
	}
}

func TestConnectionRequestTimeout(t *testing.T) {
	srv := newStubServer(t, func(req *Message) *Message { return nil })
	conn := dialStub(t, srv, Config{RequestTimeout: 50 * time.Millisecond}, nil)

	_, err := conn.Invoke(context.Background(), NewRequest("getSysTime"))
	if !errors.Is(err, ErrRequestTimeout) {
		t.Errorf("Invoke err = %v, want ErrRequestTimeout", err)
	}
	if got := conn.Dispatcher().PendingCount(); got != 0 {
		t.Errorf("pending handlers after timeout = %d, want 0", got)
	}
}

func TestConnectionSendBeforeOpen(t *testing.T) {
	conn := NewConnection(Config{Host: "127.0.0.1", Port: 1}, nil)
	if err := conn.Send(NewRequest("hello")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send err = %v, want ErrNotConnected", err)
	}
}

func TestConnectionDialFailureKinds(t *testing.T) {
	// A listener opened and immediately closed yields a port that refuses.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	refusedPort := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	tests := []struct {
		name string
		cfg  Config
		want FailureKind
	}{
		{"invalid_port", Config{Host: "127.0.0.1", Port: -1}, FailureSocketOpen},
		{"unresolved", Config{Host: "host.invalid", Port: 9982}, FailureUnresolvedAddress},
		{"refused", Config{Host: "127.0.0.1", Port: refusedPort}, FailureConnect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := NewConnection(tt.cfg, nil)
			err := conn.Open(context.Background())
			if err == nil {
				conn.Close()
				t.Fatal("Open succeeded, want failure")
			}
			var ce *ConnError
			if !errors.As(err, &ce) {
				t.Fatalf("Open err = %T, want *ConnError", err)
			}
			if ce.Kind != tt.want {
				t.Errorf("failure kind = %s, want %s", ce.Kind, tt.want)
			}
			if conn.State() != StateFailed {
				t.Errorf("state = %s, want failed", conn.State())
			}
		})
	}
}

func TestConnectionRemoteCloseTagsIOFailure(t *testing.T) {
	states := make(chan StateChange, 16)
	srv := newStubServer(t, nil)
	dialStub(t, srv, Config{}, func(c StateChange) {
		states <- c
	})

	srv.dropConns()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case c := <-states:
			if c.State == StateFailed {
				if c.Failure != FailureIO {
					t.Errorf("failure = %s, want io_error", c.Failure)
				}
				return
			}
		case <-deadline:
			t.Fatal("connection never reported the remote close")
		}
	}
}

func TestConnectionStateTransitions(t *testing.T) {
	var mu sync.Mutex
	var seen []ConnState
	srv := newStubServer(t, nil)
	conn := dialStub(t, srv, Config{}, func(c StateChange) {
		mu.Lock()
		seen = append(seen, c.State)
		mu.Unlock()
	})
	conn.Close()

	mu.Lock()
	defer mu.Unlock()
	want := []ConnState{StateConnecting, StateConnected, StateClosing, StateClosed}
	if len(seen) != len(want) {
		t.Fatalf("state sequence = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("state sequence = %v, want %v", seen, want)
		}
	}
}
