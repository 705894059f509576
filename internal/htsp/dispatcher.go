// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package htsp

import (
	"sync"
)

// Dispatcher routes decoded inbound messages: a message whose seq matches a
// registered single-use handler is delivered to that handler exactly once and
// never broadcast; everything else goes to every standing listener, in frame
// order, on the connection's read goroutine.
//
// Reply channels are buffered so delivery never blocks the read loop, and the
// lock is released before any channel send or listener call so a listener may
// call Send on the same connection without deadlocking.
type Dispatcher struct {
	mu        sync.Mutex
	pending   map[int64]chan *Message
	listeners []func(*Message)
	canceled  bool
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{pending: make(map[int64]chan *Message)}
}

// AddListener registers a standing listener for broadcast messages.
// Listeners are invoked sequentially in registration order.
func (d *Dispatcher) AddListener(fn func(*Message)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Register creates the single-use reply channel for seq. The channel is
// closed without a value when the connection shuts down.
func (d *Dispatcher) Register(seq int64) <-chan *Message {
	ch := make(chan *Message, 1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.canceled {
		close(ch)
		return ch
	}
	d.pending[seq] = ch
	return ch
}

// Unregister drops the handler for seq, typically after a request timeout.
func (d *Dispatcher) Unregister(seq int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, seq)
}

// Dispatch routes one inbound message.
func (d *Dispatcher) Dispatch(msg *Message) {
	if seq, ok := msg.Seq(); ok {
		d.mu.Lock()
		ch, found := d.pending[seq]
		if found {
			delete(d.pending, seq)
		}
		d.mu.Unlock()
		if found {
			ch <- msg
			close(ch)
			return
		}
	}

	d.mu.Lock()
	listeners := d.listeners
	d.mu.Unlock()
	for _, fn := range listeners {
		fn(msg)
	}
}

// CancelAll closes every pending reply channel so blocked callers fail fast
// instead of waiting out their timeouts, and refuses later registrations.
// Called by Connection.Close.
func (d *Dispatcher) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.canceled = true
	for seq, ch := range d.pending {
		close(ch)
		delete(d.pending, seq)
	}
}

// PendingCount returns the number of outstanding reply handlers.
func (d *Dispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
