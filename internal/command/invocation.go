// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package command

import (
	"fmt"
	"io"

	"github.com/oklog/ulid/v2"

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/session"
)

// Invocation is the ephemeral record of one command dispatch. It is
// built after resolution, filled by the pipeline stages, and discarded
// when the pipeline reaches DONE or ABORTED.
type Invocation struct {
	Session *session.Session

	// Caller is the effective caller after identity resolution: the
	// puppeted character for character-scoped commands, the owning
	// account for account-scoped ones.
	Caller access.Subject
	Scope  Scope

	AccountID   ulid.ULID // zero when the session is unauthenticated
	AccountName string

	// Character context. Zero/empty when the command runs with no
	// puppeted character (out-of-character mode).
	CharacterID   ulid.ULID
	CharacterName string
	LocationID    ulid.ULID

	Raw       string // full input line as received
	CmdString string // the name actually typed, original case
	Parsed    ParsedArgs

	// EchoBroadcast is the caller's "broadcast command" setting,
	// resolved when the invocation is built. The mux post hook reads
	// it instead of any ambient configuration.
	EchoBroadcast bool

	Output   io.Writer
	Services *Services
}

// HasCharacter reports whether a character is attached.
func (inv *Invocation) HasCharacter() bool { return !inv.CharacterID.IsZero() }

// DisplayName is the name shown in echoes: the character when
// puppeting, otherwise the caller.
func (inv *Invocation) DisplayName() string {
	if inv.CharacterName != "" {
		return inv.CharacterName
	}
	return inv.Caller.Name
}

// Msg writes a line to the invoker's output.
func (inv *Invocation) Msg(text string) {
	if inv.Output == nil {
		return
	}
	fmt.Fprintln(inv.Output, text)
}

// Msgf formats and writes a line to the invoker's output.
func (inv *Invocation) Msgf(format string, args ...any) {
	inv.Msg(fmt.Sprintf(format, args...))
}
