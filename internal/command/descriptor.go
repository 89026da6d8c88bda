// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package command

import (
	"context"
	"regexp"
	"strings"

	"github.com/samber/oops"
)

// Defaults applied by CmdSet.Add when a descriptor leaves them empty.
const (
	DefaultLock     = "cmd:all()"
	DefaultCategory = "General"
)

// ParseMode selects how the dispatcher fills the Invocation during the
// parse stage.
type ParseMode int

const (
	// ParseNone leaves the argument text untouched: Args is the raw
	// remainder after the command name, nothing else is filled.
	ParseNone ParseMode = iota
	// ParseMuxStyle applies MUX splitting: switches, lhs/rhs, comma
	// lists, and the positional arglist.
	ParseMuxStyle
)

// String returns the parse mode name for logs and traces.
func (m ParseMode) String() string {
	switch m {
	case ParseMuxStyle:
		return "mux"
	default:
		return "none"
	}
}

// Scope selects how the dispatcher resolves the effective caller
// before parsing.
type Scope int

const (
	// ScopeCharacter addresses the command to the puppeted character.
	ScopeCharacter Scope = iota
	// ScopeAccount rebinds the caller to the owning account, keeping
	// the character (if any) as optional context.
	ScopeAccount
)

// String returns the scope name for logs and traces.
func (s Scope) String() string {
	switch s {
	case ScopeAccount:
		return "account"
	default:
		return "character"
	}
}

// PreHookFunc runs before parsing. Returning abort=true cancels the
// invocation silently; an error propagates to the dispatcher's caller.
type PreHookFunc func(ctx context.Context, inv *Invocation) (abort bool, err error)

// HookFunc is the signature for the work function and the post hook.
type HookFunc func(ctx context.Context, inv *Invocation) error

// Descriptor is the immutable metadata and pipeline configuration for
// one command. CmdSet.Add stores a normalized copy; descriptors must
// not be mutated after registration.
type Descriptor struct {
	Key      string   // canonical name, lowercased on Add (e.g. "look")
	Aliases  []string // alternate names, lowercased on Add
	Lock     string   // lockstring gating execution (default "cmd:all()")
	Category string   // help category (default "General")

	// ArgPattern, when set, must match the text immediately following
	// the matched name for the match to count. Word commands use it to
	// demand a boundary ("looked" must not resolve "look").
	ArgPattern *regexp.Regexp

	Parse ParseMode
	Scope Scope

	Pre  PreHookFunc // optional
	Run  HookFunc    // required
	Post HookFunc    // optional; mux-parsed commands fall back to the broadcast echo

	Help     string // one-line description
	Usage    string // usage pattern (e.g. "say <message>")
	HelpText string // detailed markdown help
}

// wordBoundary is the ArgPattern word commands share: the name must be
// followed by whitespace, a switch, an equals sign, or end of input.
var wordBoundary = regexp.MustCompile(`^(?:[ \t/=]|$)`)

// WordBoundary returns the shared boundary pattern for word-like
// command names. Punctuation aliases such as " or ; skip it so that
// `"hello` parses.
func WordBoundary() *regexp.Regexp { return wordBoundary }

// Validate checks that the descriptor is well formed.
func (d *Descriptor) Validate() error {
	if strings.TrimSpace(d.Key) == "" {
		return oops.Code(CodeInvalidDescriptor).Errorf("descriptor key cannot be empty")
	}
	if strings.ContainsFunc(d.Key, isSpace) {
		return oops.Code(CodeInvalidDescriptor).
			With("key", d.Key).
			Errorf("descriptor key cannot contain whitespace")
	}
	for _, a := range d.Aliases {
		if strings.TrimSpace(a) == "" {
			return oops.Code(CodeInvalidDescriptor).
				With("key", d.Key).
				Errorf("descriptor alias cannot be empty")
		}
		if strings.ContainsFunc(a, isSpace) {
			return oops.Code(CodeInvalidDescriptor).
				With("key", d.Key).
				With("alias", a).
				Errorf("descriptor alias cannot contain whitespace")
		}
	}
	if d.Run == nil {
		return oops.Code(CodeInvalidDescriptor).
			With("key", d.Key).
			Errorf("descriptor has no work function")
	}
	return nil
}

// names returns the lowercased key followed by lowercased aliases.
func (d *Descriptor) names() []string {
	out := make([]string, 0, 1+len(d.Aliases))
	out = append(out, strings.ToLower(d.Key))
	for _, a := range d.Aliases {
		out = append(out, strings.ToLower(a))
	}
	return out
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' }
