// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/attr"
	"github.com/novamush/novamush/internal/channel"
	"github.com/novamush/novamush/internal/command"
	"github.com/novamush/novamush/internal/session"
)

// ICHandler puppets a character: the named one, or the account's last
// puppet, or its only character. The character's puppet lock decides
// whether the account may take it.
func ICHandler(ctx context.Context, inv *command.Invocation) error {
	char, err := resolvePuppetTarget(ctx, inv, strings.TrimSpace(inv.Parsed.Args))
	if err != nil || char == nil {
		return err
	}

	if !inv.Services.Locks.Check(ctx, inv.Caller, char.Lockstring, access.TypePuppet) {
		inv.Msgf("You cannot become %s.", char.Key)
		return nil
	}

	prev := inv.Session.Character()
	if prev != nil && prev.ID == char.ID {
		inv.Msgf("You are already %s.", char.Key)
		return nil
	}

	displaced, err := inv.Services.Sessions.Puppet(inv.Session, char)
	if err != nil {
		if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Code() == session.CodePuppetInUse {
			inv.Msgf("%s is already being puppeted by another account.", char.Key)
			return nil
		}
		return command.WorldError("Unable to take that character right now.", err)
	}
	placeCharacter(ctx, inv, char)
	if displaced != nil {
		displaced.Msg(char.Key + " is now puppeted by another of your sessions.")
	}
	if prev != nil {
		announceTo(inv, prev, channel.TypeLeave, prev.Key+" has left the game.")
	}

	rememberPuppet(ctx, inv, char.ID)

	// The invocation was built before the puppet; rebind its character
	// context so the room render sees the new state.
	inv.CharacterID = char.ID
	inv.CharacterName = char.Key
	inv.LocationID = char.LocationID

	inv.Msgf("You become %s.", char.Key)
	announceTo(inv, char, channel.TypeArrive, char.Key+" has entered the game.")
	return renderLocation(ctx, inv)
}

// OOCHandler releases the puppeted character, leaving the session
// acting as its account.
func OOCHandler(ctx context.Context, inv *command.Invocation) error {
	released := inv.Services.Sessions.Unpuppet(inv.Session)
	if released == nil {
		inv.Msg("You are already OOC.")
		return nil
	}

	announceTo(inv, released, channel.TypeLeave, released.Key+" has left the game.")
	inv.Msgf("You release %s and go OOC.", released.Key)
	listOwnCharacters(ctx, inv)
	return nil
}

// resolvePuppetTarget picks the character to puppet. A nil, nil return
// means the player got a usage message instead.
func resolvePuppetTarget(ctx context.Context, inv *command.Invocation, name string) (*account.Character, error) {
	chars := inv.Services.Characters

	if name != "" {
		char, err := chars.GetByKey(ctx, name)
		if errors.Is(err, account.ErrNotFound) {
			inv.Msgf("There is no character named %q.", name)
			return nil, nil
		}
		if err != nil {
			return nil, command.WorldError("Unable to look up that character.", err)
		}
		return char, nil
	}

	// Bare @ic returns to the last puppet when one is recorded.
	if id, ok := lastPuppet(ctx, inv); ok {
		char, err := chars.GetByID(ctx, id)
		if err == nil {
			return char, nil
		}
		if !errors.Is(err, account.ErrNotFound) {
			return nil, command.WorldError("Unable to look up your last character.", err)
		}
	}

	owned, err := chars.ListByAccount(ctx, inv.AccountID)
	if err != nil {
		return nil, command.WorldError("Unable to list your characters.", err)
	}
	switch len(owned) {
	case 0:
		inv.Msg("You have no characters yet.")
		return nil, nil
	case 1:
		return owned[0], nil
	default:
		names := make([]string, len(owned))
		for i, c := range owned {
			names[i] = c.Key
		}
		inv.Msg("Which character? " + strings.Join(names, ", "))
		inv.Msg("Usage: @ic <character>")
		return nil, nil
	}
}

// placeCharacter drops a character with no location into the default
// room. Placement failures degrade to "nowhere" rather than blocking
// the puppet.
func placeCharacter(ctx context.Context, inv *command.Invocation, char *account.Character) {
	if char.HasLocation() {
		return
	}
	room, err := inv.Services.World.DefaultRoom(ctx)
	if err != nil {
		slog.WarnContext(ctx, "no default room for character placement",
			"character_id", char.ID.String(),
			"error", err)
		return
	}
	char.LocationID = room.ID
	if err := inv.Services.Characters.Update(ctx, char); err != nil {
		slog.WarnContext(ctx, "character placement not persisted",
			"character_id", char.ID.String(),
			"error", err)
	}
}

// lastPuppet reads the account's recorded last puppet.
func lastPuppet(ctx context.Context, inv *command.Invocation) (ulid.ULID, bool) {
	var raw string
	found, err := attr.GetJSON(ctx, inv.Services.Attrs, inv.AccountID, account.AttrLastPuppet, &raw)
	if err != nil || !found {
		return ulid.ULID{}, false
	}
	id, err := ulid.Parse(raw)
	if err != nil {
		return ulid.ULID{}, false
	}
	return id, true
}

// rememberPuppet records the last puppet, best effort.
func rememberPuppet(ctx context.Context, inv *command.Invocation, id ulid.ULID) {
	err := attr.SetJSON(ctx, inv.Services.Attrs, inv.AccountID, account.AttrLastPuppet, id.String())
	if err != nil {
		slog.WarnContext(ctx, "last puppet not recorded",
			"account_id", inv.AccountID.String(),
			"error", err)
	}
}

// announceTo publishes a text event to a character's location.
func announceTo(inv *command.Invocation, char *account.Character, typ channel.EventType, text string) {
	if char.LocationID.IsZero() || inv.Services.Events == nil {
		return
	}
	inv.Services.Events.PublishText(
		channel.LocationStream(char.LocationID),
		channel.Actor{Kind: channel.ActorCharacter, ID: char.ID, Name: char.Key},
		typ,
		text,
	)
}

// listOwnCharacters shows the account's characters for the next @ic.
func listOwnCharacters(ctx context.Context, inv *command.Invocation) {
	owned, err := inv.Services.Characters.ListByAccount(ctx, inv.AccountID)
	if err != nil || len(owned) == 0 {
		return
	}
	names := make([]string, len(owned))
	for i, c := range owned {
		names[i] = c.Key
	}
	inv.Msg("Your characters: " + strings.Join(names, ", ") + ". Use @ic <character> to return.")
}
