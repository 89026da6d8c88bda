// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/attr"
	"github.com/novamush/novamush/internal/config"
	"github.com/novamush/novamush/internal/observability"
	"github.com/novamush/novamush/internal/telnet"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// AccountStoreFactory opens the account and character repositories.
	// Default: Postgres when database.url is set, in-memory otherwise.
	AccountStoreFactory func(ctx context.Context, db config.Database) (AccountStore, error)

	// MigratorFactory opens the schema migrator used to bring the
	// database up to date on startup.
	// Default: openMigrator over the embedded migrations.
	MigratorFactory func(ctx context.Context, databaseURL string) (SchemaMigrator, error)

	// AttrStoreFactory opens the attribute store.
	// Default: attr.OpenBolt
	AttrStoreFactory func(path string) (AttrStore, error)

	// ObservabilityServerFactory creates the metrics/health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// TelnetServerFactory creates a player-facing listener. Called once
	// for the plain listener and again, with a TLS option, when
	// server.tls_addr is configured.
	// Default: telnet.NewServer
	TelnetServerFactory func(addr string, deps telnet.Deps, opts ...telnet.Option) (TelnetServer, error)
}

// AccountStore bundles the account and character repositories behind
// one closeable handle.
type AccountStore interface {
	Accounts() account.Repository
	Characters() account.CharacterRepository
	Close()
}

// SchemaMigrator wraps the methods serve uses from postgres.Migrator.
type SchemaMigrator interface {
	Up() error
	Close() error
}

// AttrStore is an attribute store that holds resources until closed.
type AttrStore interface {
	attr.Store
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
	Registry() *prometheus.Registry
}

// TelnetServer wraps the methods used from telnet.Server.
type TelnetServer interface {
	Run(ctx context.Context) error
	Addr() string
}
