// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/account/postgres"
	"github.com/novamush/novamush/internal/config"
	"github.com/novamush/novamush/internal/seed"
	"github.com/novamush/novamush/internal/world"
)

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with initial world data",
		Long: `Load a seed manifest: rooms for the world plus durable accounts and
characters. Without --file the built-in minimal manifest is used.

This command is idempotent - entities that already exist are verified
and skipped, never overwritten, so repeated runs converge.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.file, "file", "", "seed manifest YAML (default: built-in minimal world)")
	f.DurationVar(&cfg.timeout, "timeout", defaultConnectTimeout, "timeout for database operations (e.g., 30s, 1m)")
	f.String("database-url", "", "PostgreSQL connection URL")

	return cmd
}

func runSeed(cmd *cobra.Command, cfg *seedConfig) error {
	conf, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := requireDatabaseURL(conf); err != nil {
		return err
	}

	manifest := seed.DefaultManifest()
	if cfg.file != "" {
		data, readErr := os.ReadFile(cfg.file)
		if readErr != nil {
			return oops.
				Code(seed.CodeInvalid).
				With("operation", "read manifest").
				With("path", cfg.file).
				Wrap(readErr)
		}
		if schemaErr := seed.ValidateSchema(data); schemaErr != nil {
			return schemaErr
		}
		manifest, err = seed.ParseManifest(data)
		if err != nil {
			return err
		}
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	migrator, err := openMigrator(ctx, conf.Database.URL)
	if err != nil {
		return err
	}
	cmd.Println("Running migrations...")
	if upErr := migrator.Up(); upErr != nil {
		closeMigrator(migrator)
		return upErr
	}
	closeMigrator(migrator)

	pool, err := connectPool(ctx, conf.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Rooms are rebuilt from the manifest on every server start; the
	// loader needs them here so character locations resolve.
	rooms := world.NewService()
	loader := seed.NewLoader(
		postgres.NewAccountRepository(pool),
		postgres.NewCharacterRepository(pool),
		account.NewArgon2idHasher(),
		rooms,
		access.NewEngine(),
	)
	res, err := loader.Apply(ctx, manifest)
	if err != nil {
		return err
	}

	cmd.Printf("Rooms: %d created, %d skipped\n", res.RoomsCreated, res.RoomsSkipped)
	cmd.Printf("Accounts: %d created, %d skipped\n", res.AccountsCreated, res.AccountsSkipped)
	cmd.Printf("Characters: %d created, %d skipped\n", res.CharactersCreated, res.CharactersSkipped)
	slog.Info("seed applied",
		"rooms_created", res.RoomsCreated,
		"accounts_created", res.AccountsCreated,
		"characters_created", res.CharactersCreated,
	)

	cmd.Println("World seeding complete!")
	return nil
}
