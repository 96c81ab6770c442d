// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

// Package access gates named views behind the auth role hierarchy.
//
// Views are strings such as "view:dashboard" or "view:users:list". A policy
// maps glob patterns over view names to the minimum role allowed to open
// them. A view that matches no pattern is denied.
package access

import (
	"errors"
	"log/slog"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/staffboard/staffboard/internal/auth"
)

// Denial reasons reported to the denial hook.
const (
	ReasonUnauthenticated  = "unauthenticated"
	ReasonInsufficientRole = "insufficient_role"
	ReasonUnknownView      = "unknown_view"
)

// CodeUnknownView is carried by the error for views outside the policy.
const CodeUnknownView = "ACCESS_UNKNOWN_VIEW"

// RoleChecker is the part of auth.Service the gate relies on.
type RoleChecker interface {
	RequireRole(sess *auth.Session, required auth.Role) error
}

// Guard protects a view. Handlers and services depend on this.
type Guard interface {
	Require(sess *auth.Session, view string) error
}

// DenialHook observes every denial.
type DenialHook func(view, reason string)

type compiledRule struct {
	pattern string
	glob    glob.Glob
	minRole auth.Role
}

// Gate is a Guard backed by a static policy. It is immutable after
// construction and safe for concurrent use.
type Gate struct {
	checker RoleChecker
	rules   []compiledRule
	nav     []NavItem
	logger  *slog.Logger
	onDeny  DenialHook
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithLogger sets the logger used for denials.
func WithLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithDenialHook registers fn to be called on each denial.
func WithDenialHook(fn DenialHook) GateOption {
	return func(g *Gate) {
		g.onDeny = fn
	}
}

// WithNavigation replaces DefaultNavigation.
func WithNavigation(items []NavItem) GateOption {
	return func(g *Gate) {
		g.nav = items
	}
}

// NewGate compiles policy. Patterns use ':' as the glob separator, so
// "view:users:*" matches "view:users:list" but not "view:users:a:b".
func NewGate(checker RoleChecker, policy []Rule, opts ...GateOption) (*Gate, error) {
	if checker == nil {
		return nil, oops.In("access").Code("ACCESS_INVALID_CONFIG").Errorf("role checker is required")
	}

	rules := make([]compiledRule, 0, len(policy))
	for _, r := range policy {
		if !r.MinRole.Valid() {
			return nil, oops.In("access").
				Code("ACCESS_INVALID_RULE").
				With("pattern", r.Pattern).
				With("role", string(r.MinRole)).
				Errorf("unknown role in policy")
		}
		g, err := glob.Compile(r.Pattern, ':')
		if err != nil {
			return nil, oops.In("access").
				Code("ACCESS_INVALID_PATTERN").
				With("pattern", r.Pattern).
				Wrap(err)
		}
		rules = append(rules, compiledRule{pattern: r.Pattern, glob: g, minRole: r.MinRole})
	}

	gate := &Gate{
		checker: checker,
		rules:   rules,
		nav:     DefaultNavigation(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(gate)
	}
	return gate, nil
}

// MustNewGate is NewGate for policies known to be valid. It panics on error.
func MustNewGate(checker RoleChecker, policy []Rule, opts ...GateOption) *Gate {
	gate, err := NewGate(checker, policy, opts...)
	if err != nil {
		panic("invalid access policy: " + err.Error())
	}
	return gate
}

// MinRole returns the role the policy requires for view.
func (g *Gate) MinRole(view string) (auth.Role, bool) {
	for _, r := range g.rules {
		if r.glob.Match(view) {
			return r.minRole, true
		}
	}
	return "", false
}

// Require returns nil when sess may open view. Otherwise it returns
// auth.ErrUnauthenticated or auth.ErrForbidden, and callers must stop.
// A timed-out session is cleared as a side effect.
func (g *Gate) Require(sess *auth.Session, view string) error {
	minRole, ok := g.MinRole(view)
	if !ok {
		g.deny(view, ReasonUnknownView)
		return oops.In("access").
			Code(CodeUnknownView).
			With("view", view).
			Wrapf(auth.ErrForbidden, "no policy for view")
	}

	err := g.checker.RequireRole(sess, minRole)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrUnauthenticated):
		g.deny(view, ReasonUnauthenticated)
	default:
		g.deny(view, ReasonInsufficientRole)
	}
	return err
}

// Allowed reports whether sess may open view.
func (g *Gate) Allowed(sess *auth.Session, view string) bool {
	minRole, ok := g.MinRole(view)
	if !ok {
		return false
	}
	return g.checker.RequireRole(sess, minRole) == nil
}

// Navigation lists the views whose links sess should see, in display order.
// An unauthenticated or timed-out session sees none.
func (g *Gate) Navigation(sess *auth.Session) []NavItem {
	var items []NavItem
	for _, item := range g.nav {
		if !g.Allowed(sess, item.View) {
			continue
		}
		if sess.User.Role.Satisfies(item.MinRole) {
			items = append(items, item)
		}
	}
	return items
}

func (g *Gate) deny(view, reason string) {
	g.logger.Debug("access denied", "view", view, "reason", reason)
	if g.onDeny != nil {
		g.onDeny(view, reason)
	}
}

// Compile-time interface checks.
var (
	_ Guard       = (*Gate)(nil)
	_ RoleChecker = (*auth.Service)(nil)
)
