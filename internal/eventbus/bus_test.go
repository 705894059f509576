// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/pvrmirror/pvrmirror/internal/models"
)

func TestBusConnectionEvents(t *testing.T) {
	bus := New()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, TopicConnection)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := bus.PublishConnection("failed", "connect_timeout"); err != nil {
		t.Fatalf("PublishConnection: %v", err)
	}

	select {
	case msg := <-msgs:
		var ev ConnectionEvent
		if err := Decode(msg, &ev); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if ev.State != "failed" || ev.Failure != "connect_timeout" {
			t.Errorf("event = %+v", ev)
		}
		if ev.EventID == "" || ev.Timestamp.IsZero() {
			t.Errorf("event missing id or timestamp: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no connection event delivered")
	}
}

func TestBusSyncEventsFanOut(t *testing.T) {
	bus := New()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := bus.Subscribe(ctx, TopicSync)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	second, err := bus.Subscribe(ctx, TopicSync)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	progress := models.SyncProgress{State: "loading", Channels: 120}
	if err := bus.PublishSync("loading", progress); err != nil {
		t.Fatalf("PublishSync: %v", err)
	}

	for _, sub := range []struct {
		name string
		ch   <-chan *message.Message
	}{
		{"first", first},
		{"second", second},
	} {
		select {
		case msg := <-sub.ch:
			var ev SyncEvent
			if err := Decode(msg, &ev); err != nil {
				t.Fatalf("%s Decode: %v", sub.name, err)
			}
			if ev.State != "loading" || ev.Progress.Channels != 120 {
				t.Errorf("%s event = %+v", sub.name, ev)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s subscriber never received the sync event", sub.name)
		}
	}
}

func TestBusDvrResultEvents(t *testing.T) {
	bus := New()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, TopicDvrResult)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := bus.PublishDvrResult("addDvrEntry", false, "channel not found"); err != nil {
		t.Fatalf("PublishDvrResult: %v", err)
	}

	select {
	case msg := <-msgs:
		var ev DvrResultEvent
		if err := Decode(msg, &ev); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if ev.Action != "addDvrEntry" || ev.Success || ev.Error != "channel not found" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no dvr result event delivered")
	}
}
