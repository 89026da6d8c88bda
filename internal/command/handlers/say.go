// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/novamush/novamush/internal/channel"
	"github.com/novamush/novamush/internal/command"
)

// SayHandler speaks to the caller's location. The speaker sees the
// first-person form; the room hears the third-person one.
func SayHandler(ctx context.Context, inv *command.Invocation) error {
	text := strings.TrimSpace(inv.Parsed.Args)
	if text == "" {
		inv.Msg("Say what?")
		return nil
	}

	inv.Msgf("You say, %q", text)
	publishToLocation(inv, channel.TypeSay, fmt.Sprintf("%s says, %q", inv.DisplayName(), text))
	return nil
}

// PoseHandler acts out a line prefixed with the caller's name and a
// space: `pose smiles` reads "Brand smiles."
func PoseHandler(ctx context.Context, inv *command.Invocation) error {
	text := strings.TrimSpace(inv.Parsed.Args)
	if text == "" {
		inv.Msg("Pose what?")
		return nil
	}
	emit(inv, inv.DisplayName()+" "+text)
	return nil
}

// SemiposeHandler joins the caller's name and the text with no space:
// `;'s eyes gleam` reads "Brand's eyes gleam."
func SemiposeHandler(ctx context.Context, inv *command.Invocation) error {
	text := strings.TrimRight(inv.Parsed.Args, " \t")
	if strings.TrimSpace(text) == "" {
		inv.Msg("Pose what?")
		return nil
	}
	emit(inv, inv.DisplayName()+text)
	return nil
}

// emit shows a pose line to the caller and the room alike.
func emit(inv *command.Invocation, line string) {
	inv.Msg(line)
	publishToLocation(inv, channel.TypePose, line)
}

// publishToLocation emits a text event on the caller's location stream.
// Transports suppress events whose actor is their own character, so the
// caller does not hear themselves twice.
func publishToLocation(inv *command.Invocation, typ channel.EventType, text string) {
	if inv.LocationID.IsZero() || inv.Services.Events == nil {
		return
	}
	inv.Services.Events.PublishText(
		channel.LocationStream(inv.LocationID),
		channel.Actor{Kind: channel.ActorCharacter, ID: inv.CharacterID, Name: inv.CharacterName},
		typ,
		text,
	)
}
