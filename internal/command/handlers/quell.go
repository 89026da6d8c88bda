// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package handlers

import (
	"context"

	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/attr"
	"github.com/novamush/novamush/internal/command"
)

// QuellHandler marks the account quelled: lock subjects built for it
// carry the character's own permissions until @unquell. Already-quelled
// accounts are left untouched.
func QuellHandler(ctx context.Context, inv *command.Invocation) error {
	attrs := inv.Services.Attrs

	quelled, err := attrs.Has(ctx, inv.AccountID, account.AttrQuell)
	if err != nil {
		return command.WorldError("Unable to check your quell state.", err)
	}
	if quelled {
		inv.Msg("You are already quelled.")
		return nil
	}

	if err := attr.SetJSON(ctx, attrs, inv.AccountID, account.AttrQuell, true); err != nil {
		return command.WorldError("Unable to quell your account.", err)
	}
	inv.Msg("You are now using your character's permissions. Use @unquell to restore your own.")
	return nil
}

// UnquellHandler restores the account's own permissions.
func UnquellHandler(ctx context.Context, inv *command.Invocation) error {
	attrs := inv.Services.Attrs

	quelled, err := attrs.Has(ctx, inv.AccountID, account.AttrQuell)
	if err != nil {
		return command.WorldError("Unable to check your quell state.", err)
	}
	if !quelled {
		inv.Msg("You are not quelled.")
		return nil
	}

	if err := attrs.Delete(ctx, inv.AccountID, account.AttrQuell); err != nil {
		return command.WorldError("Unable to unquell your account.", err)
	}
	inv.Msg("You are now using your account's permissions.")
	return nil
}
