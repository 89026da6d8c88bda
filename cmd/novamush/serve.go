// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/attr"
	"github.com/novamush/novamush/internal/channel"
	"github.com/novamush/novamush/internal/command"
	"github.com/novamush/novamush/internal/command/handlers"
	"github.com/novamush/novamush/internal/config"
	"github.com/novamush/novamush/internal/logging"
	"github.com/novamush/novamush/internal/observability"
	"github.com/novamush/novamush/internal/seed"
	"github.com/novamush/novamush/internal/session"
	"github.com/novamush/novamush/internal/telnet"
	gametls "github.com/novamush/novamush/internal/tls"
	"github.com/novamush/novamush/internal/world"
	"github.com/novamush/novamush/internal/xdg"
)

// shutdownTimeout bounds how long auxiliary servers get to stop.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the game server",
		Long: `Start the game server: the telnet listener, command dispatch, and
the metrics/health endpoint.

Configuration layers defaults, the YAML config file, and these flags,
with later layers winning. Without a database URL accounts live in
memory and vanish on restart.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	f := cmd.Flags()
	f.String("telnet-addr", config.DefaultTelnetAddr, "telnet listen address")
	f.String("tls-addr", "", "TLS telnet listen address (empty = disabled)")
	f.String("metrics-addr", config.DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	f.String("log-format", config.DefaultLogFormat, "log format (json or text)")
	f.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, or error)")
	f.String("database-url", "", "PostgreSQL connection URL (empty = in-memory accounts)")
	f.String("attrs-path", "", "attribute database file (default: attrs.db under the XDG data dir)")

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}

	// Set up default factories
	if deps.AccountStoreFactory == nil {
		deps.AccountStoreFactory = newAccountStore
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(ctx context.Context, databaseURL string) (SchemaMigrator, error) {
			m, err := openMigrator(ctx, databaseURL)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if deps.AttrStoreFactory == nil {
		deps.AttrStoreFactory = func(path string) (AttrStore, error) {
			if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
				return nil, err
			}
			b, err := attr.OpenBolt(path)
			if err != nil {
				return nil, err
			}
			return b, nil
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.TelnetServerFactory == nil {
		deps.TelnetServerFactory = func(addr string, d telnet.Deps, opts ...telnet.Option) (TelnetServer, error) {
			return telnet.NewServer(addr, d, opts...)
		}
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("novamush", version, cfg.Observability.LogFormat, cfg.Observability.LogLevel)

	slog.Info("starting server",
		"telnet_addr", cfg.Server.TelnetAddr,
		"tls", cfg.Server.TLSAddr != "",
		"log_format", cfg.Observability.LogFormat,
		"database", cfg.Database.URL != "",
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Bring the schema up to date before the repositories touch it.
	if cfg.Database.URL != "" {
		migrator, migErr := deps.MigratorFactory(ctx, cfg.Database.URL)
		if migErr != nil {
			return migErr
		}
		if upErr := migrator.Up(); upErr != nil {
			closeMigrator(migrator)
			return upErr
		}
		closeMigrator(migrator)
		slog.Info("database schema up to date")
	}

	store, err := deps.AccountStoreFactory(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	attrs, err := deps.AttrStoreFactory(cfg.Store.AttrsPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := attrs.Close(); closeErr != nil {
			slog.Warn("error closing attribute store", "error", closeErr)
		}
	}()

	hasher := account.NewArgon2idHasher()
	engine := access.NewEngine()
	rooms := world.NewService()

	// Idempotent: an already-seeded world is verified and left alone.
	loader := seed.NewLoader(store.Accounts(), store.Characters(), hasher, rooms, engine)
	res, err := loader.Apply(ctx, seed.DefaultManifest())
	if err != nil {
		return err
	}
	slog.Info("world ready",
		"rooms_created", res.RoomsCreated,
		"rooms_skipped", res.RoomsSkipped,
	)

	start, err := rooms.DefaultRoom(ctx)
	if err != nil {
		return err
	}

	accounts := account.NewService(store.Accounts(), store.Characters(), hasher,
		account.WithMaxCharacters(cfg.Game.MaxCharacters),
		account.WithMaxGuests(cfg.Game.MaxGuests),
		account.WithGuestsEnabled(cfg.Game.GuestsEnabled),
		account.WithStartingLocation(start.ID),
	)

	registry := session.NewRegistry()
	events := channel.NewBroadcaster()

	catalog := command.NewCatalog()
	handlers.RegisterAll(catalog)

	limiter := command.NewRateLimiter(command.DefaultRateLimitConfig())
	defer limiter.Close()

	dispatcher := command.NewDispatcher(catalog, &command.Services{
		World:      rooms,
		Sessions:   registry,
		Accounts:   store.Accounts(),
		Characters: store.Characters(),
		Attrs:      attrs,
		Locks:      engine,
		Events:     events,
	},
		command.WithRateLimiter(limiter),
		command.WithBroadcastEchoDefault(cfg.Game.BroadcastEcho),
	)

	quell, err := cfg.Game.QuellPolicy()
	if err != nil {
		return err
	}
	lifecycleOpts := []session.LifecycleOption{
		session.WithQuellPolicy(quell),
		session.WithGuestReaper(accounts),
	}
	if cfg.Game.BannerFile != "" {
		banner, readErr := os.ReadFile(cfg.Game.BannerFile)
		if readErr != nil {
			return oops.
				Code(config.CodeInvalid).
				With("operation", "read banner file").
				With("path", cfg.Game.BannerFile).
				Wrap(readErr)
		}
		lifecycleOpts = append(lifecycleOpts, session.WithBanner(strings.TrimRight(string(banner), "\n")))
	}
	if cfg.Game.WelcomeImageURL != "" {
		lifecycleOpts = append(lifecycleOpts, session.WithWelcomeImage(cfg.Game.WelcomeImageURL))
	}
	lifecycle := session.NewLifecycle(registry, store.Accounts(), attrs, events, lifecycleOpts...)

	// The observability server is created before the telnet server so
	// its metrics handle can be shared, but started after, so the
	// readiness probe observes the assigned listener.
	var telnetSrv TelnetServer
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Observability.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Observability.MetricsAddr, func() bool {
			return telnetSrv != nil && telnetSrv.Addr() != ""
		})
		if regErr := command.RegisterMetrics(obsServer.Registry()); regErr != nil {
			return oops.
				Code("METRICS_REGISTER_FAILED").
				With("operation", "register command metrics").
				Wrap(regErr)
		}
		if regErr := session.RegisterMetrics(obsServer.Registry()); regErr != nil {
			return oops.
				Code("METRICS_REGISTER_FAILED").
				With("operation", "register session metrics").
				Wrap(regErr)
		}
		limiterGauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "novamush_rate_limiter_buckets",
			Help: "Live rate limiter token buckets.",
		})
		if regErr := obsServer.Registry().Register(limiterGauge); regErr != nil {
			return oops.
				Code("METRICS_REGISTER_FAILED").
				With("operation", "register rate limiter gauge").
				Wrap(regErr)
		}
		limiter.SetGauge(limiterGauge)
		metrics = obsServer.Metrics()
	}

	tdeps := telnet.Deps{
		Dispatcher: dispatcher,
		Registry:   registry,
		Lifecycle:  lifecycle,
		Accounts:   accounts,
		Events:     events,
		Metrics:    metrics,
	}
	telnetSrv, err = deps.TelnetServerFactory(cfg.Server.TelnetAddr, tdeps)
	if err != nil {
		return err
	}

	// The TLS listener shares every dependency with the plain one; only
	// the wire below the game protocol differs.
	var tlsSrv TelnetServer
	if cfg.Server.TLSAddr != "" {
		tlsOpt, tlsErr := telnetTLSOption(cfg.Server)
		if tlsErr != nil {
			return tlsErr
		}
		tlsSrv, err = deps.TelnetServerFactory(cfg.Server.TLSAddr, tdeps, tlsOpt)
		if err != nil {
			return err
		}
	}

	if obsServer != nil {
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			return oops.
				Code("SERVER_FAILED").
				With("operation", "start observability server").
				Wrap(startErr)
		}
		// Monitor observability server errors - cancel context on error
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- telnetSrv.Run(ctx)
	}()
	var tlsServeErr chan error
	if tlsSrv != nil {
		tlsServeErr = make(chan error, 1)
		go func() {
			tlsServeErr <- tlsSrv.Run(ctx)
		}()
	}

	cmd.Println("NovaMUSH server started")
	slog.Info("server ready",
		"telnet_addr", cfg.Server.TelnetAddr,
		"tls", tlsSrv != nil,
	)

	// Wait for a shutdown signal or a listener failure, then drain both
	// listeners; Run does not return until every session has finished
	// its disconnect sequence. A nil tlsServeErr never fires.
	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	case runErr = <-serveErr:
		serveErr = nil
		cancel()
	case runErr = <-tlsServeErr:
		tlsServeErr = nil
		cancel()
	}
	if serveErr != nil {
		if err := <-serveErr; runErr == nil {
			runErr = err
		}
	}
	if tlsServeErr != nil {
		if err := <-tlsServeErr; runErr == nil {
			runErr = err
		}
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if obsServer != nil {
		if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
			slog.Warn("error stopping observability server", "error", stopErr)
		}
	}

	if runErr != nil {
		return oops.With("operation", "run telnet server").Wrap(runErr)
	}

	slog.Info("shutdown complete")
	return nil
}

// telnetTLSOption builds the TLS option for the secure listener. With
// no configured certificate a self-signed development pair is kept
// under the XDG data directory.
func telnetTLSOption(srv config.Server) (telnet.Option, error) {
	certFile, keyFile := srv.TLSCert, srv.TLSKey
	if certFile == "" {
		var err error
		certFile, keyFile, err = gametls.EnsureSelfSigned(
			filepath.Join(xdg.DataDir(), "tls"),
			[]string{"localhost", "127.0.0.1", "::1"},
		)
		if err != nil {
			return nil, err
		}
		slog.Warn("no TLS certificate configured, using a self-signed pair",
			"cert_file", certFile,
		)
	}
	conf, err := gametls.ServerConfig(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return telnet.WithTLS(conf), nil
}

// monitorServerErrors cancels the run context when a background server
// reports a fatal error. A closed channel means a graceful stop.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
