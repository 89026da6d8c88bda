// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/novamush/novamush/internal/channel"
	"github.com/novamush/novamush/internal/command"
)

// WallHandler announces to every connected session, including ones
// sitting OOC. The event also goes out on the public channel for
// subscribers that record or relay it.
func WallHandler(ctx context.Context, inv *command.Invocation) error {
	text := strings.TrimSpace(inv.Parsed.Args)
	if text == "" {
		return command.ErrInvalidArgs("@wall", "@wall <message>")
	}

	line := fmt.Sprintf("Announcement from %s: %s", inv.Caller.Name, text)
	recipients := 0
	for _, sess := range inv.Services.Sessions.All() {
		if !sess.LoggedIn() {
			continue
		}
		sess.Msg(line)
		recipients++
	}

	if inv.Services.Events != nil {
		inv.Services.Events.PublishText(
			channel.StreamPublic,
			channel.Actor{Kind: channel.ActorAccount, ID: inv.AccountID, Name: inv.Caller.Name},
			channel.TypeWall,
			line,
		)
	}

	slog.InfoContext(ctx, "wall announcement",
		"account_id", inv.AccountID.String(),
		"account", inv.Caller.Name,
		"recipients", recipients)
	return nil
}
