// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package handlers

import (
	"context"
	"sort"
	"strings"

	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/command"
)

// LookHandler shows the current location, or a character present in it.
func LookHandler(ctx context.Context, inv *command.Invocation) error {
	target := strings.TrimSpace(inv.Parsed.Args)
	if target == "" || strings.EqualFold(target, "here") {
		return renderLocation(ctx, inv)
	}

	char, ok := findPresent(inv, target)
	if !ok {
		inv.Msgf("You don't see %q here.", target)
		return nil
	}
	inv.Msgf("%s is here.", char.DisplayName(ctx, inv.Caller, inv.Services.Locks))
	return nil
}

// renderLocation writes the room's name, description, and the other
// characters present. Shared by look and the @ic arrival.
func renderLocation(ctx context.Context, inv *command.Invocation) error {
	if inv.LocationID.IsZero() {
		inv.Msg("You are nowhere. Something has gone wrong; try @ic again.")
		return nil
	}

	room, err := inv.Services.World.Room(ctx, inv.LocationID)
	if err != nil {
		return command.WorldError("You can't make out your surroundings.", err)
	}

	inv.Msg(room.Name)
	if room.Description != "" {
		inv.Msg(room.Description)
	}

	names := presentNames(ctx, inv)
	if len(names) > 0 {
		inv.Msg("You see: " + strings.Join(names, ", "))
	}
	return nil
}

// presentNames lists the characters sharing the caller's location,
// excluding the caller, rendered per the viewer's examine access.
func presentNames(ctx context.Context, inv *command.Invocation) []string {
	var names []string
	for _, sess := range inv.Services.Sessions.All() {
		char := sess.Character()
		if char == nil || char.ID == inv.CharacterID || char.LocationID != inv.LocationID {
			continue
		}
		names = append(names, char.DisplayName(ctx, inv.Caller, inv.Services.Locks))
	}
	sort.Strings(names)
	return names
}

// findPresent locates a puppeted character in the caller's location by
// name, case-insensitively.
func findPresent(inv *command.Invocation, name string) (*account.Character, bool) {
	for _, sess := range inv.Services.Sessions.All() {
		char := sess.Character()
		if char == nil || char.LocationID != inv.LocationID {
			continue
		}
		if strings.EqualFold(char.Key, name) {
			return char, true
		}
	}
	return nil, false
}
