// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

// Package command provides the command sets, MUX argument parser, and
// the dispatch pipeline.
package command

import (
	"context"

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/attr"
	"github.com/novamush/novamush/internal/channel"
	"github.com/novamush/novamush/internal/session"
	"github.com/novamush/novamush/internal/world"
)

// Services provides access to core services for command handlers.
// Handlers MUST NOT store references to services beyond execution.
type Services struct {
	World      *world.Service              // room queries
	Sessions   *session.Registry           // live sessions and puppeting
	Accounts   account.Repository          // account persistence
	Characters account.CharacterRepository // character persistence
	Attrs      attr.Store                  // persisted entity attributes
	Locks      access.Predicate            // lock evaluation
	Events     *channel.Broadcaster        // stream fan-out
}

// SetProvider yields the command sets active for a session at dispatch
// time. Which sets apply depends on whether the session is bound to an
// account and whether it puppets a character.
type SetProvider interface {
	ActiveSets(ctx context.Context, sess *session.Session) []*CmdSet
}
