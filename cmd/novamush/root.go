// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the NovaMUSH CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "novamush",
		Short: "NovaMUSH - a multi-user text game server",
		Long: `NovaMUSH is a multi-user text game server built around account
and character binding, lock-guarded commands, and room broadcasts
over plain telnet.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewValidateSeedCmd())

	return cmd
}
