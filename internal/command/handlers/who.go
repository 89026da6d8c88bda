// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/command"
	"github.com/novamush/novamush/internal/session"
)

// WhoHandler lists connected sessions with connect and idle times.
// Staff additionally see each session's remote address.
func WhoHandler(ctx context.Context, inv *command.Invocation) error {
	sessions := inv.Services.Sessions.All()
	staff := inv.Caller.Superuser || access.HoldsPerm(inv.Caller.Perms, access.PermAdmin)

	if staff {
		inv.Msgf("%-22s %10s %7s  %s", "Name", "On For", "Idle", "From")
	} else {
		inv.Msgf("%-22s %10s %7s", "Name", "On For", "Idle")
	}

	now := time.Now()
	shown := 0
	for _, sess := range sessions {
		acct := sess.Account()
		if acct == nil {
			// Unauthenticated connections are the transport's business.
			continue
		}
		shown++

		name := whoName(sess)
		onFor := formatSpan(now.Sub(sess.ConnectedAt))
		idle := formatSpan(sess.IdleFor())
		if staff {
			inv.Msgf("%-22s %10s %7s  %s", name, onFor, idle, sess.Remote)
		} else {
			inv.Msgf("%-22s %10s %7s", name, onFor, idle)
		}
	}

	switch shown {
	case 1:
		inv.Msg("1 player connected.")
	default:
		inv.Msgf("%d players connected.", shown)
	}
	return nil
}

// whoName renders a session's line name: the puppeted character, or
// the account marked OOC.
func whoName(sess *session.Session) string {
	if char := sess.Character(); char != nil {
		return char.Key
	}
	return sess.Account().Key + " (OOC)"
}

// formatSpan renders a duration in the compact who-list form.
func formatSpan(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	d = d.Round(time.Second)

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
