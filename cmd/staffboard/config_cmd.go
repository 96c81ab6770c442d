// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/staffboard/staffboard/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration that serve would use, after merging the
config file, flags and environment. The database password is redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			return runConfig(cmd, cfg)
		},
	}
}

func runConfig(cmd *cobra.Command, cfg *config.Config) error {
	out, err := cfg.YAML()
	if err != nil {
		//nolint:wrapcheck // config errors are already coded
		return err
	}
	if _, err := cmd.OutOrStdout().Write(out); err != nil {
		return oops.With("operation", "write config").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		cmd.PrintErrln("warning:", err)
	}
	return nil
}
