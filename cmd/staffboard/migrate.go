// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/staffboard/staffboard/internal/config"
	"github.com/staffboard/staffboard/internal/store"
)

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL schema migrations.`,
	}

	cmd.AddCommand(newMigrateSubCmd("up", "Apply all pending migrations", runMigrateUp))
	cmd.AddCommand(newMigrateSubCmd("down", "Roll back all migrations", runMigrateDown))
	cmd.AddCommand(newMigrateSubCmd("status", "Show applied and pending migrations", runMigrateStatus))

	return cmd
}

type migrateRunner func(cmd *cobra.Command, m Migrator) error

func newMigrateSubCmd(use, short string, run migrateRunner) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			return runMigrateWithDeps(cmd, cfg, run, nil)
		},
	}
}

// runMigrateWithDeps opens a migrator, runs fn and closes the migrator.
func runMigrateWithDeps(cmd *cobra.Command, cfg *config.Config, fn migrateRunner, deps *MigrateDeps) (err error) {
	if deps == nil {
		deps = &MigrateDeps{}
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(databaseURL string) (Migrator, error) {
			m, err := store.NewMigrator(databaseURL)
			if err != nil {
				//nolint:wrapcheck // store errors are already coded
				return nil, err
			}
			return m, nil
		}
	}

	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database-url").
			Errorf("database-url or $%s is required", config.EnvDatabaseURL)
	}

	m, err := deps.MigratorFactory(cfg.DatabaseURL)
	if err != nil {
		return oops.With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = oops.With("operation", "close migrator").Wrap(closeErr)
		}
	}()

	return fn(cmd, m)
}

func runMigrateUp(cmd *cobra.Command, m Migrator) error {
	cmd.Println("Applying migrations...")
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("direction", "up").Wrap(err)
	}
	return printStatus(cmd, m)
}

func runMigrateDown(cmd *cobra.Command, m Migrator) error {
	cmd.Println("Rolling back migrations...")
	if err := m.Down(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("direction", "down").Wrap(err)
	}
	return printStatus(cmd, m)
}

func runMigrateStatus(cmd *cobra.Command, m Migrator) error {
	return printStatus(cmd, m)
}

func printStatus(cmd *cobra.Command, m Migrator) error {
	st, err := m.Status()
	if err != nil {
		return oops.Code("MIGRATION_STATUS_FAILED").Wrap(err)
	}

	cmd.Printf("Schema version: %d", st.Version)
	if st.Dirty {
		cmd.Print(" (dirty)")
	}
	cmd.Println()

	for _, v := range st.Applied {
		cmd.Println(statusLine("applied", v))
	}
	for _, v := range st.Pending {
		cmd.Println(statusLine("pending", v))
	}
	return nil
}

func statusLine(state string, version uint) string {
	name, err := store.MigrationName(version)
	if err != nil || name == "" {
		name = fmt.Sprintf("%06d", version)
	}
	return fmt.Sprintf("  %-8s %s", state, name)
}
