// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

// Package world holds the seeded minimal world: the rooms characters
// occupy and the service that answers room queries.
package world

import (
	"errors"
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// Validation limits for rooms.
const (
	MaxRoomNameLength        = 100
	MaxRoomDescriptionLength = 4000
)

// ErrNotFound is returned when a requested room does not exist.
var ErrNotFound = errors.New("room not found")

// ValidationError represents an input validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Room represents a location in the game world.
type Room struct {
	ID          ulid.ULID
	Name        string
	Description string
	CreatedAt   time.Time
}

// NewRoom creates a validated room with a generated ID.
func NewRoom(name, description string) (*Room, error) {
	return NewRoomWithID(ulid.Make(), name, description)
}

// NewRoomWithID creates a validated room with the provided ID. Seed
// loading uses this to keep manifest IDs stable across restarts.
func NewRoomWithID(id ulid.ULID, name, description string) (*Room, error) {
	r := &Room{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks that the room has required fields.
func (r *Room) Validate() error {
	if r.ID.IsZero() {
		return &ValidationError{Field: "id", Message: "cannot be zero"}
	}
	if err := ValidateRoomName(r.Name); err != nil {
		return err
	}
	return ValidateRoomDescription(r.Description)
}

// ValidateRoomName checks that a room name is non-empty, valid UTF-8,
// free of control characters, and within the length limit.
func ValidateRoomName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Message: "cannot be empty"}
	}
	if !utf8.ValidString(name) {
		return &ValidationError{Field: "name", Message: "must be valid UTF-8"}
	}
	if len(name) > MaxRoomNameLength {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("exceeds maximum length of %d", MaxRoomNameLength)}
	}
	if hasControlChars(name) {
		return &ValidationError{Field: "name", Message: "cannot contain control characters"}
	}
	return nil
}

// ValidateRoomDescription checks that a description is valid. It may be
// empty; newlines and tabs are allowed, other control characters not.
func ValidateRoomDescription(desc string) error {
	if desc == "" {
		return nil
	}
	if !utf8.ValidString(desc) {
		return &ValidationError{Field: "description", Message: "must be valid UTF-8"}
	}
	if len(desc) > MaxRoomDescriptionLength {
		return &ValidationError{Field: "description", Message: fmt.Sprintf("exceeds maximum length of %d", MaxRoomDescriptionLength)}
	}
	if hasControlCharsExceptWhitespace(desc) {
		return &ValidationError{Field: "description", Message: "cannot contain control characters (except newline/tab)"}
	}
	return nil
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

func hasControlCharsExceptWhitespace(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return true
		}
	}
	return false
}
