// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

// Package session tracks live connections: their protocol flags, the
// account each one authenticates as, and the character it puppets.
// Binding and puppeting go through the Registry; login and disconnect
// side effects live in Lifecycle.
package session

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/novamush/novamush/internal/account"
)

// PayloadKind distinguishes text output from out-of-band signals.
type PayloadKind uint8

const (
	PayloadText PayloadKind = iota
	PayloadSignal
)

// Signal is a structured out-of-band message for capable clients:
// login status, image references, protocol negotiation.
type Signal struct {
	Name string
	Args map[string]any
}

// Payload is one unit of output to a session, either a text line or a
// signal. Transports decide how (or whether) to render signals.
type Payload struct {
	Kind   PayloadKind
	Text   string
	Signal Signal
}

// Session is one live connection. A session may be bound to an account
// after authentication and may puppet one character at a time.
type Session struct {
	ID          ulid.ULID
	Remote      string
	ConnectedAt time.Time

	mu       sync.RWMutex
	flags    map[string]any
	acct     *account.Account
	char     *account.Character
	lastSeen time.Time
	cmds     int

	// SendFunc delivers payloads to the underlying transport. Set once
	// by the transport before the session is used; must be safe for
	// concurrent use.
	SendFunc func(Payload)

	// ExecFunc re-enters the dispatcher on the session's behalf, for
	// server-initiated commands like the post-login "@ic".
	ExecFunc func(ctx context.Context, raw string) error
}

// New creates a session for a connection from the given remote address.
func New(remote string) *Session {
	now := time.Now()
	return &Session{
		ID:          ulid.Make(),
		Remote:      remote,
		ConnectedAt: now,
		flags:       make(map[string]any),
		lastSeen:    now,
	}
}

// Account returns the bound account, or nil before login.
func (s *Session) Account() *account.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acct
}

// Character returns the puppeted character, or nil.
func (s *Session) Character() *account.Character {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.char
}

// LoggedIn reports whether the session is bound to an account.
func (s *Session) LoggedIn() bool {
	return s.Account() != nil
}

func (s *Session) setAccount(acct *account.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acct = acct
}

func (s *Session) setCharacter(char *account.Character) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.char = char
}

// Msg sends a text line to the session.
func (s *Session) Msg(text string) {
	s.send(Payload{Kind: PayloadText, Text: text})
}

// Signal sends an out-of-band signal to the session.
func (s *Session) Signal(name string, args map[string]any) {
	s.send(Payload{Kind: PayloadSignal, Signal: Signal{Name: name, Args: args}})
}

func (s *Session) send(p Payload) {
	if s.SendFunc == nil {
		return
	}
	s.SendFunc(p)
}

// Writer adapts the session's text output to io.Writer for handlers
// that render with fmt.Fprintf.
func (s *Session) Writer() io.Writer {
	return sessionWriter{s}
}

type sessionWriter struct{ s *Session }

func (w sessionWriter) Write(p []byte) (int, error) {
	w.s.Msg(string(p))
	return len(p), nil
}

// ExecuteCmd re-enters the dispatcher with a raw command line, as if
// the session had typed it.
func (s *Session) ExecuteCmd(ctx context.Context, raw string) error {
	if s.ExecFunc == nil {
		return oops.Code("SESSION_NO_DISPATCHER").
			With("session_id", s.ID.String()).
			Errorf("session has no dispatcher attached")
	}
	return s.ExecFunc(ctx, raw)
}

// Flags returns a copy of the session's protocol flags.
func (s *Session) Flags() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.flags))
	for k, v := range s.flags {
		out[k] = v
	}
	return out
}

// UpdateFlags merges protocol flags into the session. Keys fold to
// uppercase, matching how clients negotiate them.
func (s *Session) UpdateFlags(flags map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range flags {
		s.flags[strings.ToUpper(k)] = v
	}
}

// SetFlag sets a single protocol flag.
func (s *Session) SetFlag(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[strings.ToUpper(name)] = value
}

// HasCapability reports whether a protocol flag is set and truthy.
func (s *Session) HasCapability(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return truthy(s.flags[strings.ToUpper(name)])
}

// truthy treats JSON-decoded flag values uniformly: false, zero, empty
// string, and nil are off, everything else is on.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

// Touch records command activity on the session.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	s.cmds++
}

// IdleFor reports how long since the session's last command.
func (s *Session) IdleFor() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastSeen)
}

// CmdCount reports how many commands the session has issued.
func (s *Session) CmdCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cmds
}
