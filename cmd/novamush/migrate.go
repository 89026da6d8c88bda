// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/novamush/novamush/internal/config"
)

// defaultConnectTimeout bounds how long migrate and seed wait for the
// database to answer. Running migrations themselves is not bounded; a
// cancelled migration leaves the schema dirty.
const defaultConnectTimeout = 30 * time.Second

// migrateConfig holds configuration for the migrate command.
type migrateConfig struct {
	steps   int
	force   string
	status  bool
	down    bool
	timeout time.Duration
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cfg := &migrateConfig{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply account and character schema migrations to the PostgreSQL
database. With no flags all pending migrations run.

The database URL comes from the config file, the --database-url flag,
or the DATABASE_URL environment variable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.IntVar(&cfg.steps, "steps", 0, "apply exactly n migrations (negative rolls back)")
	f.StringVar(&cfg.force, "force", "", "set the schema version without running migrations")
	f.BoolVar(&cfg.status, "status", false, "print the current schema version and exit")
	f.BoolVar(&cfg.down, "down", false, "roll back all migrations (destructive)")
	f.DurationVar(&cfg.timeout, "timeout", defaultConnectTimeout, "time limit for connecting to the database")
	f.String("database-url", "", "PostgreSQL connection URL")

	return cmd
}

func runMigrate(cmd *cobra.Command, cfg *migrateConfig) error {
	conf, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := requireDatabaseURL(conf); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	m, err := openMigrator(ctx, conf.Database.URL)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	switch {
	case cfg.status:
		version, dirty, verErr := m.Version()
		if verErr != nil {
			return verErr
		}
		if dirty {
			cmd.Printf("Schema version: %d (dirty)\n", version)
		} else {
			cmd.Printf("Schema version: %d\n", version)
		}
		return nil

	case cfg.force != "":
		version, parseErr := parseForceVersion(cfg.force)
		if parseErr != nil {
			return parseErr
		}
		if forceErr := m.Force(version); forceErr != nil {
			return forceErr
		}
		cmd.Printf("Schema version forced to %d\n", version)
		return nil

	case cfg.down:
		cmd.Println("Rolling back all migrations...")
		if downErr := m.Down(); downErr != nil {
			return downErr
		}
		cmd.Println("Rollback complete")
		return nil

	case cfg.steps != 0:
		cmd.Printf("Applying %d migration step(s)...\n", cfg.steps)
		if stepErr := m.Steps(cfg.steps); stepErr != nil {
			return stepErr
		}
		cmd.Println("Migrations completed successfully")
		return nil

	default:
		cmd.Println("Running migrations...")
		if upErr := m.Up(); upErr != nil {
			return upErr
		}
		cmd.Println("Migrations completed successfully")
		return nil
	}
}

// parseForceVersion parses the --force argument. Sscanf semantics:
// leading whitespace is skipped and parsing stops at the first
// non-digit, so "3abc" yields 3.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(s, "%d", &version); err != nil {
		return 0, oops.
			Code("INVALID_VERSION").
			With("input", s).
			Errorf("version must be an integer, got %q", s)
	}
	return version, nil
}
