// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/staffboard/staffboard/internal/access"
	"github.com/staffboard/staffboard/internal/auth"
	authpg "github.com/staffboard/staffboard/internal/auth/postgres"
	"github.com/staffboard/staffboard/internal/config"
	"github.com/staffboard/staffboard/internal/employee"
	employeepg "github.com/staffboard/staffboard/internal/employee/postgres"
	"github.com/staffboard/staffboard/internal/logging"
	"github.com/staffboard/staffboard/internal/observability"
	"github.com/staffboard/staffboard/internal/store"
	"github.com/staffboard/staffboard/internal/web"
)

// Startup database wait.
const (
	dbWaitAttempts = 6
	dbWaitBase     = 250 * time.Millisecond
	dbWaitCap      = 5 * time.Second
	shutdownGrace  = 5 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the staffboard HTTP API and, unless metrics-addr is empty,
the metrics and health probe server. Runs until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

// runServeWithDeps starts the API with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.PoolFactory == nil {
		deps.PoolFactory = defaultPoolFactory
	}
	if deps.DatabaseWaiter == nil {
		deps.DatabaseWaiter = func(ctx context.Context, db store.Pinger) error {
			return waitForDatabase(ctx, db, dbWaitAttempts, dbWaitBase, cfg.QueryTimeout)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readiness observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, readiness, logger)
		}
	}
	if deps.WebServerFactory == nil {
		deps.WebServerFactory = func(addr string, handler http.Handler, logger *slog.Logger) WebServer {
			return web.NewServer(addr, handler, logger)
		}
	}

	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	logger := logging.SetDefault("staffboard", version, cfg.LogFormat)
	logger.Info("starting staffboard",
		"listen_addr", cfg.ListenAddr,
		"metrics_addr", cfg.MetricsAddr,
		"database_url", config.RedactDSN(cfg.DatabaseURL))

	pool, err := deps.PoolFactory(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	if err := deps.DatabaseWaiter(ctx, pool); err != nil {
		return oops.With("operation", "wait for database").Wrap(err)
	}
	logger.Info("connected to database")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	obsServer := deps.ObservabilityServerFactory(cfg.MetricsAddr, func(ctx context.Context) error {
		return store.Ping(ctx, pool, cfg.QueryTimeout)
	}, logger)
	metrics := obsServer.Metrics()

	handler, err := buildHandler(pool, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer handler.Close()

	if cfg.MetricsAddr != "" {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		defer stopServer(logger, "observability", obsServer)
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	webServer := deps.WebServerFactory(cfg.ListenAddr, handler, logger)
	webErrChan, err := webServer.Start()
	if err != nil {
		return oops.With("operation", "start web server").Wrap(err)
	}
	defer stopServer(logger, "web", webServer)
	go monitorServerErrors(ctx, cancel, webErrChan, "web")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Staffboard listening on " + webServer.Addr())
	logger.Info("staffboard ready", "addr", webServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}
	return nil
}

// buildHandler wires repositories, services and the access gate into the API.
func buildHandler(pool Pool, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*web.Handler, error) {
	authSvc, err := auth.NewAuthServiceWithLogger(
		authpg.NewUserRepository(pool),
		auth.NewArgon2idHasher(),
		logger,
		auth.WithSessionTimeout(cfg.SessionTimeout),
	)
	if err != nil {
		return nil, oops.With("operation", "create auth service").Wrap(err)
	}

	gate, err := access.NewGate(authSvc, access.DefaultPolicy(),
		access.WithLogger(logger),
		access.WithNavigation(access.DefaultNavigation()),
		access.WithDenialHook(metrics.RecordDenial),
	)
	if err != nil {
		return nil, oops.With("operation", "create access gate").Wrap(err)
	}

	employees, err := employee.NewService(employeepg.NewEmployeeRepository(pool), gate, logger)
	if err != nil {
		return nil, oops.With("operation", "create employee service").Wrap(err)
	}

	handler, err := web.NewHandler(web.Deps{
		Auth:      authSvc,
		Gate:      gate,
		Employees: employees,
		Metrics:   metrics,
		Logger:    logger,
	}, web.Options{
		QueryTimeout: cfg.QueryTimeout,
		LoginRate:    cfg.LoginRate,
		LoginBurst:   cfg.LoginBurst,
		CookieSecure: cfg.CookieSecure,
	})
	if err != nil {
		return nil, oops.With("operation", "create web handler").Wrap(err)
	}
	return handler, nil
}

// waitForDatabase pings db with exponential backoff, giving up after attempts tries.
func waitForDatabase(ctx context.Context, db store.Pinger, attempts uint64, base, timeout time.Duration) error {
	backoff := retry.NewExponential(base)
	backoff = retry.WithCappedDuration(dbWaitCap, backoff)
	backoff = retry.WithMaxRetries(attempts-1, backoff)

	//nolint:wrapcheck // the last ping error is already coded
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := store.Ping(ctx, db, timeout); err != nil {
			slog.Warn("database not ready", "error", err.Error())
			return retry.RetryableError(err)
		}
		return nil
	})
}

type stopper interface {
	Stop(ctx context.Context) error
}

func stopServer(logger *slog.Logger, name string, s stopper) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
