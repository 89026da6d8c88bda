// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/seed"
	"github.com/novamush/novamush/pkg/errutil"
)

// NewValidateSeedCmd creates the validate-seed subcommand.
func NewValidateSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-seed [file...]",
		Short: "Validate seed manifests without starting the server",
		Long: `Check seed manifest files against the JSON schema, the structural
rules, and the lockstring compiler. With no arguments the built-in
manifest is checked.

Does NOT start the server or require a database connection.
Exits with code 0 on success, non-zero on failure.

Useful in CI pipelines to catch manifest errors early:
  novamush validate-seed seeds/world.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateSeed(cmd, args)
		},
	}
}

func runValidateSeed(cmd *cobra.Command, paths []string) error {
	engine := access.NewEngine()

	if len(paths) == 0 {
		m := seed.DefaultManifest()
		if err := m.Validate(); err != nil {
			return err
		}
		if err := m.CheckLockstrings(engine); err != nil {
			return err
		}
		cmd.Println("Built-in manifest is valid")
		return nil
	}

	var failures int
	for _, path := range paths {
		if err := validateManifestFile(engine, path); err != nil {
			failures++
			errutil.LogError(slog.Default(), "seed manifest invalid", oops.With("path", path).Wrap(err))
			cmd.PrintErrf("%s: invalid\n", path)
			continue
		}
		cmd.Printf("%s: OK\n", path)
	}

	if failures > 0 {
		return oops.
			Code(seed.CodeInvalid).
			Errorf("validation failed: %d of %d manifests invalid", failures, len(paths))
	}

	slog.Info("all seed manifests valid", "count", len(paths))
	return nil
}

// validateManifestFile runs the full check stack over one file: JSON
// schema, structural validation, then lockstring compilation.
func validateManifestFile(engine *access.Engine, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return oops.
			Code(seed.CodeInvalid).
			With("operation", "read manifest").
			Wrap(err)
	}
	if err := seed.ValidateSchema(data); err != nil {
		return err
	}
	m, err := seed.ParseManifest(data)
	if err != nil {
		return err
	}
	return m.CheckLockstrings(engine)
}
