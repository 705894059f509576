// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package sync

import (
	stdsync "sync"

	"github.com/pvrmirror/pvrmirror/internal/htsp"
)

// inbox is an unbounded FIFO between the connection's read pump and the
// engine goroutine. Push never blocks, so repository writes can never stall
// frame decoding; order is preserved exactly.
type inbox struct {
	mu     stdsync.Mutex
	items  []*htsp.Message
	signal chan struct{}
	closed bool
}

func newInbox() *inbox {
	return &inbox{signal: make(chan struct{}, 1)}
}

// push appends a message and wakes the consumer.
func (q *inbox) push(m *htsp.Message) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, m)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// pop removes the oldest message, or returns nil when the inbox is empty.
func (q *inbox) pop() *htsp.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	m := q.items[0]
	q.items = q.items[1:]
	return m
}

// next blocks until a message is available or done closes; nil means done.
func (q *inbox) next(done <-chan struct{}) *htsp.Message {
	for {
		if m := q.pop(); m != nil {
			return m
		}
		select {
		case <-q.signal:
		case <-done:
			// Drain what is already queued before giving up, so shutdown
			// never drops accepted notifications.
			if m := q.pop(); m != nil {
				return m
			}
			return nil
		}
	}
}

// close stops accepting new messages.
func (q *inbox) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// depth reports the queued message count.
func (q *inbox) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
