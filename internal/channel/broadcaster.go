// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package channel

import (
	"log/slog"
	"sync"
)

// subscriberBuffer is the per-subscriber channel capacity. A slow
// consumer whose buffer fills misses events rather than blocking the
// publisher.
const subscriberBuffer = 100

// Broadcaster distributes events to stream subscribers.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string][]chan Event
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[string][]chan Event),
	}
}

// Subscribe creates a channel for receiving events on a stream.
func (b *Broadcaster) Subscribe(stream string) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	b.subs[stream] = append(b.subs[stream], ch)
	return ch
}

// Unsubscribe removes a channel from a stream and closes it.
func (b *Broadcaster) Unsubscribe(stream string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[stream]
	for i, sub := range subs {
		if sub == ch {
			b.subs[stream] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish sends an event to all subscribers of its stream. Subscribers
// whose buffers are full miss the event; the drop is logged.
func (b *Broadcaster) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[event.Stream] {
		select {
		case ch <- event:
		default:
			slog.Warn("event dropped: subscriber buffer full",
				"stream", event.Stream,
				"event_id", event.ID.String(),
				"event_type", event.Type,
			)
		}
	}
}

// PublishText builds a text event and publishes it, returning the
// published event.
func (b *Broadcaster) PublishText(stream string, actor Actor, typ EventType, text string) Event {
	event := NewTextEvent(stream, actor, typ, text)
	b.Publish(event)
	return event
}

// Subscribers reports the number of active subscriptions on a stream.
func (b *Broadcaster) Subscribers(stream string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[stream])
}
