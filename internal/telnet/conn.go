// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package telnet

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/channel"
	"github.com/novamush/novamush/internal/command"
	"github.com/novamush/novamush/internal/observability"
	"github.com/novamush/novamush/internal/session"
)

// writeSource labels this transport on the output write failure counter.
const writeSource = "telnet"

// Disconnect reasons recorded on the disconnect counter.
const (
	reasonRequested   = "requested"
	reasonEOF         = "eof"
	reasonReadError   = "read_error"
	reasonShutdown    = "shutdown"
	reasonLoginFailed = "login_failed"
)

// conn drives one telnet connection: the connect screen before login,
// the dispatcher afterwards, and broadcast fan-in throughout. All
// writes to the socket are serialized; the session's SendFunc may be
// called from any goroutine.
type conn struct {
	netConn net.Conn
	reader  *bufio.Reader
	deps    Deps
	auth    *AuthFlow
	sess    *session.Session

	mu          sync.Mutex
	closeReason string
	closeOnce   sync.Once

	// Subscriptions are touched only by the handle loop.
	locStream string
	locCh     chan channel.Event
	connectCh chan channel.Event
}

func newConn(netConn net.Conn, deps Deps, auth *AuthFlow) *conn {
	c := &conn{
		netConn: netConn,
		reader:  bufio.NewReader(netConn),
		deps:    deps,
		auth:    auth,
		sess:    session.New(remoteHost(netConn)),
	}
	c.sess.SendFunc = c.sendPayload
	c.sess.ExecFunc = func(ctx context.Context, raw string) error {
		return deps.Dispatcher.Dispatch(ctx, c.sess, raw)
	}
	return c
}

// remoteHost strips the port from the connection's remote address, so
// connection history records the host alone.
func remoteHost(netConn net.Conn) string {
	addr := netConn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// handle processes the connection until it closes.
func (c *conn) handle(ctx context.Context) {
	defer c.cleanup(ctx)

	c.deps.Registry.Add(c.sess)
	c.write(session.ConnectScreen)

	lineCh := make(chan string)
	errCh := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go c.readLines(lineCh, errCh, done)

	for {
		select {
		case <-ctx.Done():
			c.write("Server is shutting down.")
			c.requestClose(reasonShutdown)
			return

		case err := <-errCh:
			if errors.Is(err, io.EOF) {
				c.requestClose(reasonEOF)
			} else if c.requestClose(reasonReadError) {
				slog.Debug("connection read failed",
					"session_id", c.sess.ID.String(),
					"error", err)
			}
			return

		case line := <-lineCh:
			c.processLine(ctx, line)
			if c.closed() {
				return
			}
			c.syncLocation()

		// A nil subscription channel never fires.
		case ev := <-c.locCh:
			c.renderEvent(ev)

		case ev := <-c.connectCh:
			c.renderEvent(ev)
		}
	}
}

// readLines feeds trimmed input lines to the handle loop. The done
// channel releases it once the loop stops receiving.
func (c *conn) readLines(lineCh chan<- string, errCh chan<- error, done <-chan struct{}) {
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			select {
			case errCh <- err:
			case <-done:
			}
			return
		}
		select {
		case lineCh <- strings.TrimSpace(line):
		case <-done:
			return
		}
	}
}

func (c *conn) processLine(ctx context.Context, line string) {
	if !c.sess.LoggedIn() {
		c.connectScreenLine(ctx, line)
		return
	}
	if err := c.deps.Dispatcher.Dispatch(ctx, c.sess, line); err != nil {
		if msg := command.PlayerMessage(err); msg != "" {
			c.write(msg)
		}
	}
}

// connectScreenLine handles the pre-login command table.
func (c *conn) connectScreenLine(ctx context.Context, line string) {
	word, rest := splitWord(line)
	switch strings.ToLower(word) {
	case "":
		// Blank lines before login are ignored.
	case "connect":
		c.doLogin(ctx, rest)
	case "create":
		c.doCreate(ctx, rest)
	case "guest":
		if res := c.auth.Guest(ctx); res.OK {
			c.finishLogin(ctx, res.Account)
		} else {
			c.write(res.Message)
		}
	case "quit":
		c.write("Goodbye.")
		c.requestClose(reasonRequested)
	default:
		c.write("Unknown command. Use: connect <name> <password>")
	}
}

func (c *conn) doLogin(ctx context.Context, rest string) {
	name, password := splitWord(rest)
	if name == "" || password == "" {
		c.write("Usage: connect <name> <password>")
		return
	}
	if res := c.auth.Connect(ctx, name, password); res.OK {
		c.finishLogin(ctx, res.Account)
	} else {
		c.write(res.Message)
	}
}

func (c *conn) doCreate(ctx context.Context, rest string) {
	name, password := splitWord(rest)
	if name == "" || password == "" {
		c.write("Usage: create <name> <password>")
		return
	}
	c.write(c.auth.Create(ctx, name, password).Message)
}

// finishLogin runs the login sequence and joins the connect feed. A
// failed sequence may leave the session half bound, so the connection
// is closed rather than left in an ambiguous state.
func (c *conn) finishLogin(ctx context.Context, acct *account.Account) {
	if err := c.deps.Lifecycle.PostLogin(ctx, c.sess, acct); err != nil {
		slog.ErrorContext(ctx, "login sequence failed",
			"session_id", c.sess.ID.String(),
			"account", acct.Key,
			"error", err)
		c.write("Login failed. Please try again later.")
		c.requestClose(reasonLoginFailed)
		return
	}
	if c.connectCh == nil {
		c.connectCh = c.deps.Events.Subscribe(channel.StreamConnect)
	}
}

// syncLocation keeps the location subscription aligned with the
// puppeted character. Checked after every processed line, since
// puppeting and placement both happen inside dispatch.
func (c *conn) syncLocation() {
	want := ""
	if char := c.sess.Character(); char != nil && char.HasLocation() {
		want = channel.LocationStream(char.LocationID)
	}
	if want == c.locStream {
		return
	}
	if c.locCh != nil {
		c.deps.Events.Unsubscribe(c.locStream, c.locCh)
		c.locCh = nil
	}
	if want != "" {
		c.locCh = c.deps.Events.Subscribe(want)
	}
	c.locStream = want
}

// renderEvent writes a broadcast event, suppressing events caused by
// the session's own character. Handlers echo to their caller directly,
// so delivering the broadcast too would double it.
func (c *conn) renderEvent(ev channel.Event) {
	if char := c.sess.Character(); char != nil &&
		ev.Actor.Kind == channel.ActorCharacter && ev.Actor.ID == char.ID {
		return
	}
	if text := ev.Text(); text != "" {
		c.write(text)
	}
}

// sendPayload delivers session output to the socket. Disconnect
// signals close the connection; other signals are rendered only for
// clients that negotiated the rich capability.
func (c *conn) sendPayload(p session.Payload) {
	switch p.Kind {
	case session.PayloadText:
		c.write(p.Text)
	case session.PayloadSignal:
		if p.Signal.Name == session.SignalDisconnect {
			c.requestClose(reasonRequested)
			return
		}
		if c.sess.HasCapability(session.FlagRich) {
			c.writeSignal(p.Signal)
		}
	}
}

// writeSignal renders a signal as an MCP-style out-of-band line.
func (c *conn) writeSignal(sig session.Signal) {
	if len(sig.Args) == 0 {
		c.write("#$# " + sig.Name)
		return
	}
	args, err := json.Marshal(sig.Args)
	if err != nil {
		slog.Debug("unencodable signal args", "signal", sig.Name, "error", err)
		c.write("#$# " + sig.Name)
		return
	}
	c.write("#$# " + sig.Name + " " + string(args))
}

// write sends one line, or a preformatted block, to the client.
// Session payloads arrive with a trailing newline already attached;
// trimming it keeps Fprintln from doubling the line ending.
func (c *conn) write(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeReason != "" {
		return
	}
	if _, err := fmt.Fprintln(c.netConn, strings.TrimRight(text, "\n")); err != nil {
		observability.RecordOutputWriteFailure(writeSource)
		slog.Debug("session write failed",
			"session_id", c.sess.ID.String(),
			"error", err)
	}
}

// requestClose closes the connection once, keeping the first reason.
// Reports whether this call was the one that closed it.
func (c *conn) requestClose(reason string) bool {
	c.mu.Lock()
	first := c.closeReason == ""
	if first {
		c.closeReason = reason
	}
	c.mu.Unlock()
	c.closeOnce.Do(func() {
		if err := c.netConn.Close(); err != nil {
			slog.Debug("error closing connection", "error", err)
		}
	})
	return first
}

func (c *conn) closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeReason != ""
}

// cleanup drops subscriptions, records the disconnect, and runs the
// disconnect sequence. The sequence still runs during shutdown, so
// connection history and guest teardown survive a canceled context.
func (c *conn) cleanup(ctx context.Context) {
	if c.locCh != nil {
		c.deps.Events.Unsubscribe(c.locStream, c.locCh)
		c.locCh = nil
	}
	if c.connectCh != nil {
		c.deps.Events.Unsubscribe(channel.StreamConnect, c.connectCh)
		c.connectCh = nil
	}

	c.requestClose(reasonEOF)
	if c.deps.Metrics != nil {
		c.deps.Metrics.DisconnectsTotal.WithLabelValues(c.reason()).Inc()
	}

	ctx = context.WithoutCancel(ctx)
	if err := c.deps.Lifecycle.PostDisconnect(ctx, c.sess); err != nil {
		slog.WarnContext(ctx, "disconnect sequence failed",
			"session_id", c.sess.ID.String(),
			"error", err)
	}
}

func (c *conn) reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeReason
}

// splitWord returns the first word and the trimmed remainder.
func splitWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}
