// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package handlers

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/attr"
	"github.com/novamush/novamush/internal/channel"
	"github.com/novamush/novamush/internal/command"
	"github.com/novamush/novamush/internal/session"
	"github.com/novamush/novamush/internal/world"
)

// gameFixture is a fully wired in-memory service bundle. Handlers under
// test run against real repositories, a real registry, and the real
// lock engine, so scenarios behave as they would under the dispatcher.
type gameFixture struct {
	services *command.Services
	registry *session.Registry
	accounts *account.MemoryRepository
	chars    *account.MemoryCharacterRepository
	attrs    *attr.Memory
	events   *channel.Broadcaster
	world    *world.Service
	room     *world.Room
}

func newGameFixture(t *testing.T) *gameFixture {
	t.Helper()

	f := &gameFixture{
		registry: session.NewRegistry(),
		accounts: account.NewMemoryRepository(),
		chars:    account.NewMemoryCharacterRepository(),
		attrs:    attr.NewMemory(),
		events:   channel.NewBroadcaster(),
		world:    world.NewService(),
	}

	room, err := world.NewRoom("The Plaza", "A broad plaza ringed by lanterns.")
	require.NoError(t, err)
	require.NoError(t, f.world.AddRoom(room))
	f.room = room

	f.services = &command.Services{
		World:      f.world,
		Sessions:   f.registry,
		Accounts:   f.accounts,
		Characters: f.chars,
		Attrs:      f.attrs,
		Locks:      access.NewEngine(),
		Events:     f.events,
	}
	return f
}

// outbox captures payloads delivered to one session.
type outbox struct {
	mu      sync.Mutex
	lines   []string
	signals []string
}

func (o *outbox) deliver(p session.Payload) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch p.Kind {
	case session.PayloadText:
		o.lines = append(o.lines, strings.TrimRight(p.Text, "\n"))
	case session.PayloadSignal:
		o.signals = append(o.signals, p.Signal.Name)
	}
}

func (o *outbox) text() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return strings.Join(o.lines, "\n")
}

func (o *outbox) signalNames() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.signals...)
}

// conn is one authenticated session with captured output.
type conn struct {
	sess *session.Session
	out  *outbox
	acct *account.Account
	char *account.Character
}

// addAccount creates and stores an account, appending any extra perms
// to the player default.
func (f *gameFixture) addAccount(t *testing.T, key string, perms ...string) *account.Account {
	t.Helper()
	acct, err := account.NewAccount(key, "test-hash")
	require.NoError(t, err)
	acct.Perms = append(acct.Perms, perms...)
	require.NoError(t, f.accounts.Create(context.Background(), acct))
	return acct
}

// addCharacter creates a character owned by the account, placed in the
// fixture room.
func (f *gameFixture) addCharacter(t *testing.T, acct *account.Account, key string) *account.Character {
	t.Helper()
	char, err := account.NewCharacter(&acct.ID, key)
	require.NoError(t, err)
	char.LocationID = f.room.ID
	require.NoError(t, f.chars.Create(context.Background(), char))
	return char
}

// connect registers an authenticated session for the account.
func (f *gameFixture) connect(t *testing.T, acct *account.Account) *conn {
	t.Helper()
	sess := session.New("203.0.113.9:4201")
	out := &outbox{}
	sess.SendFunc = out.deliver
	f.registry.Add(sess)
	require.NoError(t, f.registry.Bind(sess, acct))
	return &conn{sess: sess, out: out, acct: acct}
}

// puppet points the connection at the character.
func (f *gameFixture) puppet(t *testing.T, c *conn, char *account.Character) {
	t.Helper()
	_, err := f.registry.Puppet(c.sess, char)
	require.NoError(t, err)
	c.char = char
}

// enter builds the common case: an account with one character and a
// session puppeting it.
func (f *gameFixture) enter(t *testing.T, acctKey, charKey string, perms ...string) *conn {
	t.Helper()
	acct := f.addAccount(t, acctKey, perms...)
	char := f.addCharacter(t, acct, charKey)
	c := f.connect(t, acct)
	f.puppet(t, c, char)
	return c
}

// charExec builds a character-scoped invocation the way the dispatcher
// assembles one for the connection's current puppet.
func (f *gameFixture) charExec(c *conn, parsed command.ParsedArgs) (*command.Invocation, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return &command.Invocation{
		Session:       c.sess,
		Caller:        account.CharacterSubject(c.acct, c.char, false),
		Scope:         command.ScopeCharacter,
		AccountID:     c.acct.ID,
		AccountName:   c.acct.Key,
		CharacterID:   c.char.ID,
		CharacterName: c.char.Key,
		LocationID:    c.char.LocationID,
		Parsed:        parsed,
		Output:        buf,
		Services:      f.services,
	}, buf
}

// acctExec builds an account-scoped invocation. A puppeted character,
// if any, stays attached as context.
func (f *gameFixture) acctExec(c *conn, parsed command.ParsedArgs) (*command.Invocation, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	inv := &command.Invocation{
		Session:     c.sess,
		Caller:      account.AccountSubject(c.acct, c.char, false),
		Scope:       command.ScopeAccount,
		AccountID:   c.acct.ID,
		AccountName: c.acct.Key,
		Parsed:      parsed,
		Output:      buf,
		Services:    f.services,
	}
	if c.char != nil {
		inv.CharacterID = c.char.ID
		inv.CharacterName = c.char.Key
		inv.LocationID = c.char.LocationID
	}
	return inv, buf
}

// muxArgs parses argument text the way mux-style descriptors do.
func muxArgs(args string) command.ParsedArgs { return command.ParseMux(args) }

// rawArgs mirrors the plain descriptors that keep the text untouched.
func rawArgs(args string) command.ParsedArgs {
	return command.ParsedArgs{Raw: args, Args: args}
}

// drainEvents empties a subscription channel without blocking. Publish
// is synchronous, so events are buffered by the time a handler returns.
func drainEvents(ch chan channel.Event) []channel.Event {
	var out []channel.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}
