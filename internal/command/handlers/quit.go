// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package handlers

import (
	"context"

	"github.com/novamush/novamush/internal/command"
	"github.com/novamush/novamush/internal/session"
)

// QuitHandler ends the session. The transport closes the connection on
// the disconnect signal; disconnect side effects run from there.
func QuitHandler(ctx context.Context, inv *command.Invocation) error {
	inv.Msg("Goodbye! Disconnecting...")
	inv.Session.Signal(session.SignalDisconnect, nil)
	return nil
}
