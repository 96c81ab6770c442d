// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package employee

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/staffboard/staffboard/internal/access"
	"github.com/staffboard/staffboard/internal/auth"
	"github.com/staffboard/staffboard/pkg/errutil"
)

// Service exposes employee operations behind the access gate.
// Every method checks its view before touching the repository.
type Service struct {
	repo   Repository
	guard  access.Guard
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(repo Repository, guard access.Guard, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, oops.Code("EMPLOYEE_INVALID_CONFIG").Errorf("employee repository is required")
	}
	if guard == nil {
		return nil, oops.Code("EMPLOYEE_INVALID_CONFIG").Errorf("access guard is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, guard: guard, logger: logger}, nil
}

// Add validates in and stores a new employee.
func (s *Service) Add(ctx context.Context, sess *auth.Session, in Input) (*Employee, error) {
	if err := s.guard.Require(sess, access.ViewEmployeesAdd); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	e := in.Employee()
	if err := s.repo.Create(ctx, e); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			s.logger.InfoContext(ctx, "employee rejected", "reason", "duplicate_email")
			return nil, err
		}
		errutil.LogErrorContext(ctx, s.logger, "failed to add employee", err)
		return nil, storeUnavailable("create employee", err)
	}

	attrs := []any{"employee_id", e.ID.String(), "department", string(e.Department)}
	if user, ok := sess.User, sess.IsAuthenticated(); ok {
		attrs = append(attrs, "added_by", user.Username)
	}
	s.logger.InfoContext(ctx, "employee added", attrs...)
	return e, nil
}

// List returns every employee, most recent hire first.
func (s *Service) List(ctx context.Context, sess *auth.Session) ([]*Employee, error) {
	if err := s.guard.Require(sess, access.ViewEmployeesList); err != nil {
		return nil, err
	}
	employees, err := s.repo.List(ctx)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "failed to list employees", err)
		return nil, storeUnavailable("list employees", err)
	}
	return employees, nil
}

// Dashboard returns the workforce aggregates.
func (s *Service) Dashboard(ctx context.Context, sess *auth.Session) (*Dashboard, error) {
	if err := s.guard.Require(sess, access.ViewDashboard); err != nil {
		return nil, err
	}
	dash, err := s.repo.Dashboard(ctx)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "failed to compute dashboard", err)
		return nil, storeUnavailable("dashboard", err)
	}
	return dash, nil
}

func storeUnavailable(operation string, err error) error {
	if errors.Is(err, auth.ErrStoreUnavailable) {
		return err
	}
	return auth.StoreUnavailable(operation, err)
}
