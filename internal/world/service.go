// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package world

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service answers room queries over an in-memory room set, seeded at
// startup. The first room added becomes the default starting room
// unless SetDefaultRoom overrides it.
type Service struct {
	mu        sync.RWMutex
	rooms     map[ulid.ULID]*Room
	defaultID ulid.ULID
}

// NewService creates an empty world service.
func NewService() *Service {
	return &Service{
		rooms: make(map[ulid.ULID]*Room),
	}
}

// AddRoom registers a room. The first room added becomes the default
// starting room.
func (s *Service) AddRoom(room *Room) error {
	if err := room.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[room.ID]; exists {
		return oops.
			With("room_id", room.ID.String()).
			Errorf("room %s already exists", room.ID)
	}
	s.rooms[room.ID] = room
	if s.defaultID.IsZero() {
		s.defaultID = room.ID
	}
	return nil
}

// Room retrieves a room by ID.
func (s *Service) Room(_ context.Context, id ulid.ULID) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, oops.
			With("room_id", id.String()).
			Wrapf(ErrNotFound, "room %s", id)
	}
	return room, nil
}

// RoomByName retrieves a room by name, case-insensitively.
func (s *Service) RoomByName(_ context.Context, name string) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, room := range s.rooms {
		if strings.EqualFold(room.Name, name) {
			return room, nil
		}
	}
	return nil, oops.
		With("name", name).
		Wrapf(ErrNotFound, "room %q", name)
}

// Rooms returns all rooms sorted by name.
func (s *Service) Rooms() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetDefaultRoom marks the room characters start in.
func (s *Service) SetDefaultRoom(id ulid.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return oops.
			With("room_id", id.String()).
			Wrapf(ErrNotFound, "room %s", id)
	}
	s.defaultID = id
	return nil
}

// DefaultRoom returns the starting room.
func (s *Service) DefaultRoom(_ context.Context) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.defaultID.IsZero() {
		return nil, oops.Wrapf(ErrNotFound, "no rooms seeded")
	}
	return s.rooms[s.defaultID], nil
}
