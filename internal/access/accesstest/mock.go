// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

// Package accesstest provides test helpers for access control.
package accesstest

import (
	"sync"

	"github.com/samber/oops"

	"github.com/staffboard/staffboard/internal/access"
	"github.com/staffboard/staffboard/internal/auth"
)

// AllowAll is a Guard that allows everything.
type AllowAll struct{}

// Require always returns nil.
func (AllowAll) Require(_ *auth.Session, _ string) error {
	return nil
}

// DenyAll is a Guard that denies everything with auth.ErrForbidden.
type DenyAll struct{}

// Require always returns a forbidden error.
func (DenyAll) Require(_ *auth.Session, view string) error {
	return oops.Code(auth.CodeForbidden).With("view", view).Wrap(auth.ErrForbidden)
}

// RecordingGuard delegates to Next and records every view it was asked about.
type RecordingGuard struct {
	Next access.Guard

	mu    sync.Mutex
	views []string
}

// Require records view and delegates.
func (g *RecordingGuard) Require(sess *auth.Session, view string) error {
	g.mu.Lock()
	g.views = append(g.views, view)
	g.mu.Unlock()
	return g.Next.Require(sess, view)
}

// Views returns the views checked so far, in order.
func (g *RecordingGuard) Views() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.views))
	copy(out, g.views)
	return out
}

// Compile-time interface checks.
var (
	_ access.Guard = AllowAll{}
	_ access.Guard = DenyAll{}
	_ access.Guard = (*RecordingGuard)(nil)
)
