// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/staffboard/staffboard/internal/observability"
	"github.com/staffboard/staffboard/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// PoolFactory opens the database pool.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, dsn string) (Pool, error)

	// DatabaseWaiter blocks until the database answers.
	// Default: waitForDatabase with bounded retries
	DatabaseWaiter func(ctx context.Context, db store.Pinger) error

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readiness observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// WebServerFactory creates the API server.
	// Default: web.NewServer
	WebServerFactory func(addr string, handler http.Handler, logger *slog.Logger) WebServer
}

// MigrateDeps contains injectable dependencies for the migrate commands.
type MigrateDeps struct {
	// MigratorFactory creates a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)
}

// UseraddDeps contains injectable dependencies for the useradd command.
type UseraddDeps struct {
	// PoolFactory opens the database pool.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, dsn string) (Pool, error)
}

// Pool is the database handle used by the commands. *pgxpool.Pool satisfies it.
type Pool interface {
	store.Querier
	store.Pinger
	Close()
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// WebServer interface wraps the methods used from web.Server.
type WebServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Status() (store.MigrationStatus, error)
	Close() error
}

func defaultPoolFactory(ctx context.Context, dsn string) (Pool, error) {
	pool, err := store.Connect(ctx, dsn, store.PoolOptions{})
	if err != nil {
		//nolint:wrapcheck // store errors are already coded
		return nil, err
	}
	return pool, nil
}
