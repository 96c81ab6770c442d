// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/staffboard/staffboard/internal/auth"
	"github.com/staffboard/staffboard/internal/logging"
	"github.com/staffboard/staffboard/internal/observability"
)

const tracerName = "github.com/staffboard/staffboard/internal/web"

// RequestIDHeader echoes the id used in logs for this request.
const RequestIDHeader = "X-Request-ID"

type sessionKey struct{}

type sessionState struct {
	sess  *auth.Session
	token string
	found bool
}

func sessionFrom(ctx context.Context) *sessionState {
	st, _ := ctx.Value(sessionKey{}).(*sessionState)
	if st == nil {
		return &sessionState{sess: auth.NewSession()}
	}
	return st
}

// instrument assigns a request id, opens a server span, and records the
// access log line and request metrics once the handler returns.
func (h *Handler) instrument(next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := ulid.Make().String()
		w.Header().Set(RequestIDHeader, id)

		ctx := logging.WithRequestID(r.Context(), id)
		ctx, span := tracer.Start(ctx, r.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		elapsed := time.Since(start)

		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		h.metrics.RecordRequest(route, status, elapsed)

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		h.logger.Log(ctx, level, "http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", float64(elapsed.Microseconds())/1000)
	})
}

// routePattern is the matched chi pattern, which keeps metric labels bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func (h *Handler) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := oops.Code(CodeInternal).
					With("panic", fmt.Sprint(rec)).
					With("stack", string(debug.Stack())).
					Errorf("panic in handler")
				writeError(w, r, h.logger, err)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// queryDeadline bounds store calls made while serving a request.
func (h *Handler) queryDeadline(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.opts.QueryTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withSession resolves the session cookie and holds the session's lock for
// the rest of the request.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(SessionCookieName); err == nil {
			token = c.Value
		}

		sess, found, release := h.sessions.Acquire(token)
		defer release()

		st := &sessionState{sess: sess, token: token, found: found}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, st)))
	})
}

// limitLogins rejects login attempts over the per-IP rate.
func (h *Handler) limitLogins(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !h.limiter.allow(ip) {
			h.metrics.RecordLogin(observability.LoginRateLimited)
			h.logger.WarnContext(r.Context(), "login rate limit exceeded", "client_ip", ip)
			w.Header().Set("Retry-After", h.limiter.retryAfter())
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: errorDetail{
				Code:    CodeRateLimited,
				Message: messages[CodeRateLimited],
			}})
			return
		}
		next.ServeHTTP(w, r)
	})
}
