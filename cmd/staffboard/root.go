// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/staffboard/staffboard/internal/config"
)

// NewRootCmd creates the root command for the staffboard CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staffboard",
		Short: "Staffboard - employee records with role-based access",
		Long: `Staffboard keeps user accounts and employee records in PostgreSQL
and serves them over a JSON API with role-based access control.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (YAML)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUseraddCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig reads the effective configuration for cmd.
func loadConfig(cmd *cobra.Command, getenv func(string) string) (*config.Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path = ""
	}
	//nolint:wrapcheck // config errors are already coded
	return config.Load(path, cmd.Flags(), getenv)
}
