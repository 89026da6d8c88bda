// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

// Package telnet serves the game over plain TCP lines: the connect
// screen before authentication, the command dispatcher after.
package telnet

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sync"

	"github.com/samber/oops"

	"github.com/novamush/novamush/internal/channel"
	"github.com/novamush/novamush/internal/command"
	"github.com/novamush/novamush/internal/observability"
	"github.com/novamush/novamush/internal/session"
)

// Deps are the services a connection needs. Metrics may be nil.
type Deps struct {
	Dispatcher *command.Dispatcher
	Registry   *session.Registry
	Lifecycle  *session.Lifecycle
	Accounts   AccountService
	Events     *channel.Broadcaster
	Metrics    *observability.Metrics
}

func (d Deps) validate() error {
	switch {
	case d.Dispatcher == nil:
		return oops.Errorf("dispatcher is required")
	case d.Registry == nil:
		return oops.Errorf("session registry is required")
	case d.Lifecycle == nil:
		return oops.Errorf("session lifecycle is required")
	case d.Accounts == nil:
		return oops.Errorf("account service is required")
	case d.Events == nil:
		return oops.Errorf("event broadcaster is required")
	}
	return nil
}

// Server accepts telnet connections and runs a handler per connection.
type Server struct {
	addr    string
	deps    Deps
	auth    *AuthFlow
	tlsConf *tls.Config

	mu       sync.RWMutex
	listener net.Listener
}

// Option configures the server.
type Option func(*Server)

// WithTLS wraps the listener in TLS with the given config. The wire
// protocol above the handshake is unchanged.
func WithTLS(cfg *tls.Config) Option {
	return func(s *Server) { s.tlsConf = cfg }
}

// NewServer creates a telnet server listening on addr once Run is
// called.
func NewServer(addr string, deps Deps, opts ...Option) (*Server, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	auth, err := NewAuthFlow(deps.Accounts)
	if err != nil {
		return nil, err
	}
	s := &Server{addr: addr, deps: deps, auth: auth}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Addr returns the server's listen address, or "" before Run.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run accepts connections until the context is canceled, then waits
// for the connection handlers to finish their disconnect sequences.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.With("addr", s.addr).Wrapf(err, "starting telnet listener")
	}
	if s.tlsConf != nil {
		listener = tls.NewListener(listener, s.tlsConf)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	slog.Info("telnet server listening",
		"addr", listener.Addr().String(),
		"tls", s.tlsConf != nil,
	)

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			slog.Debug("error closing listener", "error", err)
		}
	}()

	var handlers sync.WaitGroup
	for {
		netConn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				handlers.Wait()
				return nil
			default:
				slog.Error("telnet accept failed", "error", err)
				continue
			}
		}

		if s.deps.Metrics != nil {
			s.deps.Metrics.ConnectionsTotal.WithLabelValues(writeSource).Inc()
		}
		c := newConn(netConn, s.deps, s.auth)
		handlers.Add(1)
		go func() {
			defer handlers.Done()
			c.handle(ctx)
		}()
	}
}
