// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package handlers

import (
	"context"
	"sort"
	"strings"

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/command"
)

// HelpHandler returns the help command's work function, bound to the
// catalog so the listing reflects what the caller can actually run.
func HelpHandler(catalog *command.Catalog) command.HookFunc {
	return func(ctx context.Context, inv *command.Invocation) error {
		sets := catalog.ActiveSets(ctx, inv.Session)
		visible := visibleDescriptors(ctx, inv, command.Merged(sets))

		topic := strings.TrimSpace(inv.Parsed.Args)
		if topic == "" {
			listCommands(inv, visible)
			return nil
		}
		showTopic(inv, visible, topic)
		return nil
	}
}

// visibleDescriptors filters the merged view down to commands whose
// lock the caller passes. Help never advertises what you cannot run.
func visibleDescriptors(ctx context.Context, inv *command.Invocation, descs []command.Descriptor) []command.Descriptor {
	out := make([]command.Descriptor, 0, len(descs))
	for _, d := range descs {
		if inv.Services.Locks.Check(ctx, inv.Caller, d.Lock, access.TypeCommand) {
			out = append(out, d)
		}
	}
	return out
}

func listCommands(inv *command.Invocation, descs []command.Descriptor) {
	byCategory := make(map[string][]command.Descriptor)
	for _, d := range descs {
		byCategory[d.Category] = append(byCategory[d.Category], d)
	}

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	inv.Msg("Available commands. Use 'help <command>' for details.")
	for _, c := range categories {
		inv.Msg("")
		inv.Msg(c + ":")
		for _, d := range byCategory[c] {
			if isPunctuation(d.Key) {
				// Shortcuts are documented under their word command.
				continue
			}
			if d.Help != "" {
				inv.Msgf("  %-12s %s", d.Key, d.Help)
			} else {
				inv.Msgf("  %s", d.Key)
			}
		}
	}
}

func showTopic(inv *command.Invocation, descs []command.Descriptor, topic string) {
	lowered := strings.ToLower(topic)
	for _, d := range descs {
		if d.Key != lowered && !hasAlias(d, lowered) {
			continue
		}
		if d.Usage != "" {
			inv.Msg("Usage: " + d.Usage)
		}
		if d.HelpText != "" {
			inv.Msg(d.HelpText)
		} else if d.Help != "" {
			inv.Msg(d.Help)
		}
		return
	}
	inv.Msgf("No help for %q.", topic)
}

func hasAlias(d command.Descriptor, name string) bool {
	for _, a := range d.Aliases {
		if a == name {
			return true
		}
	}
	return false
}

func isPunctuation(key string) bool {
	return len(key) == 1 && !('a' <= key[0] && key[0] <= 'z')
}
