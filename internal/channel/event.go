// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

// Package channel carries game output between sessions: location
// chatter, system channels, and connection announcements all flow
// through streams of events.
package channel

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies the kind of event.
type EventType string

const (
	TypeSay        EventType = "say"
	TypePose       EventType = "pose"
	TypeEcho       EventType = "echo"
	TypeArrive     EventType = "arrive"
	TypeLeave      EventType = "leave"
	TypeConnect    EventType = "connect"
	TypeDisconnect EventType = "disconnect"
	TypeWall       EventType = "wall"
	TypeSystem     EventType = "system"
)

// Well-known streams. Location and entity streams are derived from
// ULIDs; the named channels are fixed.
const (
	// StreamConnect carries connection and disconnection announcements.
	StreamConnect = "channel:connect"

	// StreamPublic is the default chat channel every account hears.
	StreamPublic = "channel:public"
)

// LocationStream returns the stream for a location's local output.
func LocationStream(id ulid.ULID) string {
	return "location:" + id.String()
}

// AccountStream returns an account's private stream, used for pages
// and staff walls.
func AccountStream(id ulid.ULID) string {
	return "account:" + id.String()
}

// ActorKind identifies what type of entity caused an event.
type ActorKind uint8

const (
	ActorSystem ActorKind = iota
	ActorAccount
	ActorCharacter
)

func (a ActorKind) String() string {
	switch a {
	case ActorSystem:
		return "system"
	case ActorAccount:
		return "account"
	case ActorCharacter:
		return "character"
	default:
		return "unknown"
	}
}

// Actor represents who or what caused an event.
type Actor struct {
	Kind ActorKind
	ID   ulid.ULID // zero for system actors
	Name string
}

// System is the actor for events the server itself emits.
var System = Actor{Kind: ActorSystem, Name: "system"}

// Event represents something observable that happened in the game.
type Event struct {
	ID        ulid.ULID
	Stream    string
	Type      EventType
	Timestamp time.Time
	Actor     Actor
	Payload   []byte // JSON
}

// TextPayload is the payload shape shared by all text-bearing events.
type TextPayload struct {
	Text string `json:"text"`
}

// Text decodes the event's payload as a TextPayload. Events with other
// payload shapes yield an empty string.
func (e Event) Text() string {
	var p TextPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return ""
	}
	return p.Text
}

// NewTextEvent builds a text event ready for publishing.
func NewTextEvent(stream string, actor Actor, typ EventType, text string) Event {
	payload, _ := json.Marshal(TextPayload{Text: text}) //nolint:errcheck // struct of one string cannot fail
	return Event{
		ID:        ulid.Make(),
		Stream:    stream,
		Type:      typ,
		Timestamp: time.Now(),
		Actor:     actor,
		Payload:   payload,
	}
}
