// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package htsp

import (
	"testing"
)

func TestDispatcherRoutesBySeq(t *testing.T) {
	d := NewDispatcher()
	ch := d.Register(7)

	var broadcast int
	d.AddListener(func(*Message) { broadcast++ })

	d.Dispatch(NewMessage().Set("seq", int64(7)).Set("ok", int64(1)))

	select {
	case m, ok := <-ch:
		if !ok {
			t.Fatal("reply channel closed without a message")
		}
		if m.GetInt64("ok", 0) != 1 {
			t.Errorf("wrong reply routed: %s", m)
		}
	default:
		t.Fatal("reply not delivered")
	}
	if broadcast != 0 {
		t.Errorf("seq-matched reply also hit %d listeners, want 0", broadcast)
	}
	if d.PendingCount() != 0 {
		t.Errorf("pending = %d after delivery, want 0", d.PendingCount())
	}

	// Channel is single-use: it must now be closed.
	if _, ok := <-ch; ok {
		t.Error("reply channel delivered a second value")
	}
}

func TestDispatcherBroadcastsUnmatched(t *testing.T) {
	d := NewDispatcher()
	var got []*Message
	d.AddListener(func(m *Message) { got = append(got, m) })
	d.AddListener(func(m *Message) { got = append(got, m) })

	// No seq at all, and a seq nobody registered.
	d.Dispatch(NewRequest("channelAdd"))
	d.Dispatch(NewMessage().Set("seq", int64(99)))

	if len(got) != 4 {
		t.Errorf("listener invocations = %d, want 4", len(got))
	}
}

func TestDispatcherUnregister(t *testing.T) {
	d := NewDispatcher()
	ch := d.Register(3)
	d.Unregister(3)

	d.Dispatch(NewMessage().Set("seq", int64(3)))
	select {
	case m := <-ch:
		if m != nil {
			t.Errorf("unregistered channel received %s", m)
		}
	default:
	}
	if d.PendingCount() != 0 {
		t.Errorf("pending = %d, want 0", d.PendingCount())
	}
}

func TestDispatcherCancelAll(t *testing.T) {
	d := NewDispatcher()
	a := d.Register(1)
	b := d.Register(2)

	d.CancelAll()

	for _, ch := range []<-chan *Message{a, b} {
		if _, ok := <-ch; ok {
			t.Error("canceled channel delivered a value")
		}
	}

	// Registration after cancel yields an already-closed channel.
	c := d.Register(3)
	if _, ok := <-c; ok {
		t.Error("post-cancel registration delivered a value")
	}
}
