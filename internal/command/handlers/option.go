// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package handlers

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/attr"
	"github.com/novamush/novamush/internal/command"
)

// OptionHandler shows or changes the session's protocol options.
// Changes are written through to the account's saved flags so the next
// login restores them.
func OptionHandler(ctx context.Context, inv *command.Invocation) error {
	if !inv.Parsed.HasRHS {
		listOptions(inv)
		return nil
	}

	name := strings.TrimSpace(inv.Parsed.LHS)
	if name == "" {
		return command.ErrInvalidArgs("@option", "@option [<name>=<value>]")
	}
	value := parseOptionValue(strings.TrimSpace(inv.Parsed.RHS))

	inv.Session.SetFlag(name, value)
	if err := saveOptions(ctx, inv); err != nil {
		return command.WorldError("The option was set for this session but could not be saved.", err)
	}

	inv.Msgf("Option %s set to %v.", strings.ToUpper(name), value)
	return nil
}

func listOptions(inv *command.Invocation) {
	flags := inv.Session.Flags()
	if len(flags) == 0 {
		inv.Msg("No options set.")
		return
	}

	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)

	inv.Msg("Options:")
	for _, name := range names {
		inv.Msgf("  %-20s %v", name, flags[name])
	}
}

// saveOptions persists the full flag map under the account.
func saveOptions(ctx context.Context, inv *command.Invocation) error {
	if inv.AccountID.IsZero() {
		return nil
	}
	return attr.SetJSON(ctx, inv.Services.Attrs, inv.AccountID,
		account.AttrSavedProtocolFlags, inv.Session.Flags())
}

// parseOptionValue interprets the typed value: booleans and numbers
// become typed, everything else stays a string.
func parseOptionValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "on", "yes":
		return true
	case "false", "off", "no":
		return false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}
