// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

// Package web exposes staffboard over a JSON HTTP API.
//
// Handlers decode raw strings and hand them to the services untouched.
// Every guarded route consults the access gate first and stops on denial.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"

	"github.com/staffboard/staffboard/internal/access"
	"github.com/staffboard/staffboard/internal/auth"
	"github.com/staffboard/staffboard/internal/employee"
)

// Default options.
const (
	DefaultQueryTimeout  = 5 * time.Second
	DefaultLoginRate     = 5.0
	DefaultLoginBurst    = 10
	DefaultSweepInterval = time.Minute
)

// AuthService is the part of auth.Service the API uses.
type AuthService interface {
	RegisterWithConfirmation(ctx context.Context, username, email, password, confirm string, role auth.Role) error
	Authenticate(ctx context.Context, username, password string) (*auth.User, error)
	Login(sess *auth.Session, user *auth.User)
	Logout(sess *auth.Session)
	RequireAuthentication(sess *auth.Session) error
	CurrentUser(sess *auth.Session) (*auth.User, bool)
	ListUsers(ctx context.Context, sess *auth.Session) ([]*auth.User, error)
	SessionTimeout() time.Duration
}

// Gate guards views and builds navigation.
type Gate interface {
	access.Guard
	Navigation(sess *auth.Session) []access.NavItem
}

// EmployeeService is the part of employee.Service the API uses.
type EmployeeService interface {
	Add(ctx context.Context, sess *auth.Session, in employee.Input) (*employee.Employee, error)
	List(ctx context.Context, sess *auth.Session) ([]*employee.Employee, error)
	Dashboard(ctx context.Context, sess *auth.Session) (*employee.Dashboard, error)
}

// Metrics records API events.
type Metrics interface {
	RecordLogin(result string)
	RecordRegistration(result string)
	RecordRequest(route string, status int, elapsed time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordLogin(string)                       {}
func (noopMetrics) RecordRegistration(string)                {}
func (noopMetrics) RecordRequest(string, int, time.Duration) {}

// Deps are the collaborators of the API handler.
type Deps struct {
	Auth      AuthService
	Gate      Gate
	Employees EmployeeService
	// Metrics is optional.
	Metrics Metrics
	// Logger is optional and defaults to slog.Default().
	Logger *slog.Logger
}

// Options tune the API handler. Zero values take the defaults.
type Options struct {
	QueryTimeout  time.Duration
	LoginRate     float64
	LoginBurst    int
	CookieSecure  bool
	SweepInterval time.Duration
}

func (o *Options) applyDefaults() {
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = DefaultQueryTimeout
	}
	if o.LoginRate <= 0 {
		o.LoginRate = DefaultLoginRate
	}
	if o.LoginBurst <= 0 {
		o.LoginBurst = DefaultLoginBurst
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
}

// Handler serves the API. Close must be called to stop its background sweeper.
type Handler struct {
	auth      AuthService
	gate      Gate
	employees EmployeeService
	metrics   Metrics
	logger    *slog.Logger
	opts      Options

	sessions *SessionStore
	limiter  *loginLimiter
	router   chi.Router

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewHandler wires the API routes and starts the session and limiter sweeper.
func NewHandler(deps Deps, opts Options) (*Handler, error) {
	if deps.Auth == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("auth service is required")
	}
	if deps.Gate == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("access gate is required")
	}
	if deps.Employees == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("employee service is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	opts.applyDefaults()

	h := &Handler{
		auth:      deps.Auth,
		gate:      deps.Gate,
		employees: deps.Employees,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		opts:      opts,
		sessions:  NewSessionStore(deps.Auth.SessionTimeout()),
		limiter:   newLoginLimiter(opts.LoginRate, opts.LoginBurst),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	h.router = h.routes()

	go h.sweepLoop()
	return h, nil
}

func (h *Handler) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.instrument)
	r.Use(h.recoverPanics)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.queryDeadline)

		r.With(h.limitLogins, h.withSession).Post("/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(h.withSession)

			r.Post("/logout", h.logout)
			r.Post("/register", h.register)
			r.Get("/me", h.me)
			r.Get("/navigation", h.navigation)

			r.Get("/users", h.listUsers)
			r.Post("/users", h.createUser)

			r.Get("/employees", h.listEmployees)
			r.Post("/employees", h.addEmployee)
			r.Get("/dashboard", h.dashboard)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{Code: "NOT_FOUND", Message: "Not found."}})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Sessions exposes the session store.
func (h *Handler) Sessions() *SessionStore {
	return h.sessions
}

// Close stops the sweeper. It is safe to call more than once.
func (h *Handler) Close() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	<-h.done
}

func (h *Handler) sweepLoop() {
	defer close(h.done)
	ticker := time.NewTicker(h.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweep()
		case <-h.stop:
			return
		}
	}
}

func (h *Handler) sweep() {
	sessions := h.sessions.Sweep()
	clients := h.limiter.sweep(2 * h.opts.SweepInterval)
	if sessions > 0 || clients > 0 {
		h.logger.Debug("swept idle state", "sessions", sessions, "rate_limit_clients", clients)
	}
}
