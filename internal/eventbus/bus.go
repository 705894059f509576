// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/pvrmirror/pvrmirror/internal/models"
)

// Bus is the in-process event bus. Publishing never blocks the producer
// beyond the subscriber channel buffer; a slow subscriber only delays itself.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// New creates the bus.
func New() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, newLoggerAdapter()),
	}
}

// Publish marshals v and publishes it on topic.
func (b *Bus) Publish(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns the topic's message channel; it closes when ctx is
// canceled or the bus shuts down.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return ch, nil
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// PublishConnection emits a connection transition.
func (b *Bus) PublishConnection(state, failure string) error {
	return b.Publish(TopicConnection, &ConnectionEvent{
		EventID:   watermill.NewUUID(),
		Timestamp: time.Now().UTC(),
		State:     state,
		Failure:   failure,
	})
}

// PublishAuth emits an authentication transition.
func (b *Bus) PublishAuth(state string) error {
	return b.Publish(TopicAuth, &AuthEvent{
		EventID:   watermill.NewUUID(),
		Timestamp: time.Now().UTC(),
		State:     state,
	})
}

// PublishSync emits a sync transition with the current replica counts.
func (b *Bus) PublishSync(state string, progress models.SyncProgress) error {
	return b.Publish(TopicSync, &SyncEvent{
		EventID:   watermill.NewUUID(),
		Timestamp: time.Now().UTC(),
		State:     state,
		Progress:  progress,
	})
}

// PublishServerStatus emits a refreshed backend snapshot.
func (b *Bus) PublishServerStatus(status models.ServerStatus) error {
	return b.Publish(TopicServerStatus, &ServerStatusEvent{
		EventID:   watermill.NewUUID(),
		Timestamp: time.Now().UTC(),
		Status:    status,
	})
}

// PublishDvrResult emits a DVR command outcome.
func (b *Bus) PublishDvrResult(action string, success bool, errText string) error {
	return b.Publish(TopicDvrResult, &DvrResultEvent{
		EventID:   watermill.NewUUID(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Success:   success,
		Error:     errText,
	})
}

// Decode unmarshals a bus message payload into v and acks the message.
func Decode(msg *message.Message, v any) error {
	defer msg.Ack()
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("decode event %s: %w", msg.UUID, err)
	}
	return nil
}
