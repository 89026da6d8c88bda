// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/command"
	"github.com/novamush/novamush/internal/session"
)

// BootHandler disconnects the target's sessions: every session of a
// named account, or the one puppeting a named character. The target's
// own boot lock is honored on top of the command's admin lock.
func BootHandler(ctx context.Context, inv *command.Invocation) error {
	target := strings.TrimSpace(inv.Parsed.LHS)
	if target == "" {
		return command.ErrInvalidArgs("@boot", "@boot <target>[=<reason>]")
	}
	reason := strings.TrimSpace(inv.Parsed.RHS)

	sessions, name, err := bootTargets(ctx, inv, target)
	if err != nil || sessions == nil {
		return err
	}
	if len(sessions) == 0 {
		inv.Msgf("%s is not connected.", name)
		return nil
	}

	msg := fmt.Sprintf("You have been booted by %s.", inv.Caller.Name)
	if reason != "" {
		msg += " Reason: " + reason
	}
	for _, sess := range sessions {
		sess.Msg(msg)
		sess.Signal(session.SignalDisconnect, nil)
	}

	slog.InfoContext(ctx, "admin boot",
		"admin_id", inv.AccountID.String(),
		"admin", inv.Caller.Name,
		"target", name,
		"sessions", len(sessions),
		"reason", reason)

	if len(sessions) == 1 {
		inv.Msgf("Booted 1 session of %s.", name)
	} else {
		inv.Msgf("Booted %d sessions of %s.", len(sessions), name)
	}
	return nil
}

// bootTargets resolves the boot target to live sessions. A nil slice
// with nil error means the player already got a message.
func bootTargets(ctx context.Context, inv *command.Invocation, target string) ([]*session.Session, string, error) {
	if acct, err := inv.Services.Accounts.GetByKey(ctx, target); err == nil {
		if !inv.Services.Locks.Check(ctx, inv.Caller, acct.Lockstring, access.TypeBoot) {
			inv.Msgf("You cannot boot %s.", acct.Key)
			return nil, "", nil
		}
		return inv.Services.Sessions.SessionsFor(acct.ID), acct.Key, nil
	} else if !errors.Is(err, account.ErrNotFound) {
		return nil, "", command.WorldError("Unable to look up that account.", err)
	}

	char, err := inv.Services.Characters.GetByKey(ctx, target)
	if errors.Is(err, account.ErrNotFound) {
		inv.Msgf("There is no account or character named %q.", target)
		return nil, "", nil
	}
	if err != nil {
		return nil, "", command.WorldError("Unable to look up that character.", err)
	}

	if !inv.Services.Locks.Check(ctx, inv.Caller, char.Lockstring, access.TypeBoot) {
		inv.Msgf("You cannot boot %s.", char.Key)
		return nil, "", nil
	}
	sess, ok := inv.Services.Sessions.ForCharacter(char.ID)
	if !ok {
		return []*session.Session{}, char.Key, nil
	}
	return []*session.Session{sess}, char.Key, nil
}
