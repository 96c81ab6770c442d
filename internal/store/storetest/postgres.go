// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

//go:build integration

// Package storetest starts a migrated PostgreSQL container for integration suites.
package storetest

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/staffboard/staffboard/internal/store"
)

// Database is a running container with the schema applied.
type Database struct {
	DSN  string
	Pool *pgxpool.Pool

	container *postgres.PostgresContainer
}

// StartPostgres runs postgres:16-alpine, applies every migration and opens a pool.
func StartPostgres(ctx context.Context) (*Database, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("staffboard_test"),
		postgres.WithUsername("staffboard"),
		postgres.WithPassword("staffboard"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, oops.With("operation", "start postgres container").Wrap(err)
	}

	db := &Database{container: container}
	if err := db.init(ctx); err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	return db, nil
}

func (db *Database) init(ctx context.Context) error {
	dsn, err := db.container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return oops.With("operation", "connection string").Wrap(err)
	}
	db.DSN = dsn

	migrator, err := store.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()
	if err := migrator.Up(); err != nil {
		return err
	}

	pool, err := store.Connect(ctx, dsn, store.PoolOptions{})
	if err != nil {
		return err
	}
	db.Pool = pool
	return nil
}

// Truncate empties the given tables between specs.
func (db *Database) Truncate(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, "TRUNCATE TABLE "+table); err != nil {
			return oops.With("table", table).Wrap(err)
		}
	}
	return nil
}

// Close closes the pool and terminates the container.
func (db *Database) Close(ctx context.Context) {
	if db.Pool != nil {
		db.Pool.Close()
	}
	_ = db.container.Terminate(ctx)
}
