// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package main

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/staffboard/staffboard/internal/auth"
	authpg "github.com/staffboard/staffboard/internal/auth/postgres"
	"github.com/staffboard/staffboard/internal/config"
	"github.com/staffboard/staffboard/internal/logging"
)

// useraddConfig holds flags for the useradd command.
type useraddConfig struct {
	username string
	email    string
	role     string
}

// Validate checks that the configuration is valid.
func (c *useraddConfig) Validate() error {
	if c.username == "" {
		return oops.Code("CONFIG_INVALID").With("key", "username").Errorf("--username is required")
	}
	if c.email == "" {
		return oops.Code("CONFIG_INVALID").With("key", "email").Errorf("--email is required")
	}
	return nil
}

// NewUseraddCmd creates the useradd subcommand.
func NewUseraddCmd() *cobra.Command {
	ucfg := &useraddConfig{}

	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create a user account",
		Long: `Create a user account. The password is read from the first line of
standard input, so it never appears in the process list or shell history.
The same validation as self-registration applies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			return runUseraddWithDeps(cmd.Context(), cfg, ucfg, cmd, nil)
		},
	}

	cmd.Flags().StringVar(&ucfg.username, "username", "", "account username")
	cmd.Flags().StringVar(&ucfg.email, "email", "", "account email")
	cmd.Flags().StringVar(&ucfg.role, "role", string(auth.DefaultRole), "role (user, manager or admin)")

	return cmd
}

func runUseraddWithDeps(ctx context.Context, cfg *config.Config, ucfg *useraddConfig, cmd *cobra.Command, deps *UseraddDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps == nil {
		deps = &UseraddDeps{}
	}
	if deps.PoolFactory == nil {
		deps.PoolFactory = defaultPoolFactory
	}

	if err := ucfg.Validate(); err != nil {
		return err
	}
	role, err := auth.ParseRole(ucfg.role)
	if err != nil {
		//nolint:wrapcheck // validation errors are already coded
		return err
	}
	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database-url").
			Errorf("database-url or $%s is required", config.EnvDatabaseURL)
	}

	password, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return err
	}

	logger := logging.Setup("staffboard", version, cfg.LogFormat, cmd.ErrOrStderr())

	pool, err := deps.PoolFactory(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	svc, err := auth.NewAuthServiceWithLogger(authpg.NewUserRepository(pool), auth.NewArgon2idHasher(), logger)
	if err != nil {
		return oops.With("operation", "create auth service").Wrap(err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	defer cancel()
	if err := svc.Register(ctx, ucfg.username, ucfg.email, password, role); err != nil {
		//nolint:wrapcheck // auth errors are already coded
		return err
	}

	cmd.Printf("Created %s account %q\n", role, ucfg.username)
	return nil
}

// readPassword returns the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", oops.Code("USERADD_READ_PASSWORD").Wrap(err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", oops.Code("USERADD_READ_PASSWORD").Errorf("password must be given on standard input")
	}
	return line, nil
}
