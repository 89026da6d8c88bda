// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package channel

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestBroadcaster_Subscribe(t *testing.T) {
	bc := NewBroadcaster()
	stream := LocationStream(ulid.Make())

	ch := bc.Subscribe(stream)
	if ch == nil {
		t.Fatal("Expected channel")
	}

	event := NewTextEvent(stream, System, TypeSay, "hello")
	bc.Publish(event)

	select {
	case received := <-ch:
		if received.ID != event.ID {
			t.Errorf("Event ID mismatch")
		}
		if received.Text() != "hello" {
			t.Errorf("Expected text %q, got %q", "hello", received.Text())
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for event")
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	bc := NewBroadcaster()
	stream := LocationStream(ulid.Make())

	ch := bc.Subscribe(stream)
	bc.Unsubscribe(stream, ch)

	// Channel should be closed
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Channel should be closed immediately")
	}

	if got := bc.Subscribers(stream); got != 0 {
		t.Errorf("Expected 0 subscribers, got %d", got)
	}
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	bc := NewBroadcaster()
	stream := LocationStream(ulid.Make())

	ch1 := bc.Subscribe(stream)
	ch2 := bc.Subscribe(stream)

	event := bc.PublishText(stream, System, TypeSay, "hi")

	for i, ch := range []chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.ID != event.ID {
				t.Errorf("ch%d: Event ID mismatch", i+1)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("ch%d: Timeout", i+1)
		}
	}
}

func TestBroadcaster_StreamsAreIsolated(t *testing.T) {
	bc := NewBroadcaster()
	here := LocationStream(ulid.Make())
	there := LocationStream(ulid.Make())

	ch := bc.Subscribe(here)
	bc.PublishText(there, System, TypeSay, "elsewhere")

	select {
	case e := <-ch:
		t.Errorf("Unexpected event on unrelated stream: %v", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_FullBufferDropsNotBlocks(t *testing.T) {
	bc := NewBroadcaster()
	stream := StreamConnect

	ch := bc.Subscribe(stream)
	for i := 0; i < subscriberBuffer+10; i++ {
		bc.PublishText(stream, System, TypeConnect, "spam")
	}

	// Publisher must not have blocked; subscriber holds a full buffer.
	if got := len(ch); got != subscriberBuffer {
		t.Errorf("Expected %d buffered events, got %d", subscriberBuffer, got)
	}
}

func TestActorKindString(t *testing.T) {
	cases := map[ActorKind]string{
		ActorSystem:    "system",
		ActorAccount:   "account",
		ActorCharacter: "character",
		ActorKind(99):  "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("ActorKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestEventTextMalformedPayload(t *testing.T) {
	e := Event{Payload: []byte("not json")}
	if got := e.Text(); got != "" {
		t.Errorf("Expected empty text for malformed payload, got %q", got)
	}
}
