// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/staffboard/staffboard/pkg/errutil"
)

// Service provides registration, authentication and session checks.
type Service struct {
	users   UserRepository
	hasher  PasswordHasher
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithSessionTimeout sets how long a login stays valid.
func WithSessionTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.timeout = d
	}
}

// NewAuthService creates a new Service that logs to slog.Default().
func NewAuthService(users UserRepository, hasher PasswordHasher, opts ...ServiceOption) (*Service, error) {
	return NewAuthServiceWithLogger(users, hasher, slog.Default(), opts...)
}

// NewAuthServiceWithLogger creates a new Service with an explicit logger.
func NewAuthServiceWithLogger(users UserRepository, hasher PasswordHasher, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
	}

	s := &Service{
		users:   users,
		hasher:  hasher,
		logger:  logger,
		now:     time.Now,
		timeout: DefaultSessionTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.now == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("clock is required")
	}
	if s.timeout <= 0 {
		return nil, oops.Code("AUTH_INVALID_CONFIG").
			With("timeout", s.timeout.String()).
			Errorf("session timeout must be positive")
	}
	return s, nil
}

// SessionTimeout returns the configured session lifetime.
func (s *Service) SessionTimeout() time.Duration {
	return s.timeout
}

// dummyPasswordHash is verified against when a user doesn't exist so that
// response time does not reveal which usernames are registered.
// It will never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register validates the input, hashes the password and stores a new user.
// Nothing is hashed or written unless every check passes.
// An empty role means DefaultRole.
func (s *Service) Register(ctx context.Context, username, email, password string, role Role) error {
	if role == "" {
		role = DefaultRole
	}
	if err := validateRegistration(username, email, password, role); err != nil {
		return err
	}
	return s.createUser(ctx, username, email, password, role)
}

// RegisterWithConfirmation is Register with a repeated password that must match.
func (s *Service) RegisterWithConfirmation(ctx context.Context, username, email, password, confirm string, role Role) error {
	if role == "" {
		role = DefaultRole
	}
	if err := validateRegistration(username, email, password, role); err != nil {
		return err
	}
	if password != confirm {
		return validationError(CodePasswordMismatch, "passwords do not match")
	}
	return s.createUser(ctx, username, email, password, role)
}

func validateRegistration(username, email, password string, role Role) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if !role.Valid() {
		return validationError(CodeBadRole, "role must be one of user, manager, admin")
	}
	return nil
}

func (s *Service) createUser(ctx context.Context, username, email, password string, role Role) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateCredential):
			s.logger.InfoContext(ctx, "registration rejected",
				"reason", "duplicate_credential",
				"username", username)
			return err
		default:
			errutil.LogErrorContext(ctx, s.logger, "registration failed", err)
			return asStoreUnavailable("create user", err)
		}
	}

	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID.String(),
		"username", user.Username,
		"role", user.Role.String())
	return nil
}

// Authenticate checks a username and password.
// Unknown usernames and wrong passwords produce the same ErrInvalidCredentials.
// On success last_login is updated and a snapshot without the password hash
// is returned, with LastLogin set to the time of this call.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, lookupErr := s.users.GetByUsername(ctx, username)

	var targetHash string
	var exists bool
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		exists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = dummyPasswordHash
	default:
		errutil.LogErrorContext(ctx, s.logger, "authentication lookup failed", lookupErr)
		return nil, asStoreUnavailable("get user by username", lookupErr)
	}

	// Always verify, even for unknown users, to keep timing uniform.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && exists {
		errutil.LogErrorContext(ctx, s.logger, "stored password hash is unreadable", verifyErr)
	}
	if !exists || !valid || verifyErr != nil {
		s.logger.InfoContext(ctx, "authentication failed", "username", username)
		return nil, invalidCredentials()
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Deleted between lookup and touch.
			return nil, invalidCredentials()
		}
		errutil.LogErrorContext(ctx, s.logger, "failed to record last login", err)
		return nil, asStoreUnavailable("touch last login", err)
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	snapshot := user.Clone()
	snapshot.PasswordHash = ""
	snapshot.LastLogin = &now
	return snapshot, nil
}

// upgradeHash replaces a legacy hash. Failures are logged; login still succeeds.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, newHash)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "best-effort password hash upgrade failed",
			"operation", "upgrade_hash",
			"user_id", user.ID.String(),
			"error", err.Error())
		return
	}
	s.logger.InfoContext(ctx, "password hash upgraded", "user_id", user.ID.String())
}

// Login marks sess as authenticated for user and records the login time.
// It does not touch the store.
func (s *Service) Login(sess *Session, user *User) {
	sess.Authenticated = true
	sess.User = user.Clone()
	sess.LoginTime = s.now()
}

// Logout clears sess unconditionally.
func (s *Service) Logout(sess *Session) {
	sess.Expire()
}

// SessionTimedOut reports whether sess is unusable.
// An unauthenticated session counts as timed out. An expired session is
// logged out as a side effect before returning true.
func (s *Service) SessionTimedOut(sess *Session) bool {
	if !sess.IsAuthenticated() {
		return true
	}
	if sess.IsExpiredAt(s.now(), s.timeout) {
		s.logger.Debug("session expired",
			"user_id", sess.User.ID.String(),
			"login_time", sess.LoginTime)
		s.Logout(sess)
		return true
	}
	return false
}

// RequireAuthentication returns ErrUnauthenticated unless sess holds a live login.
// A timed-out session is cleared.
func (s *Service) RequireAuthentication(sess *Session) error {
	if !sess.IsAuthenticated() {
		return unauthenticated(ReasonNotLoggedIn)
	}
	if s.SessionTimedOut(sess) {
		return unauthenticated(ReasonSessionTimedOut)
	}
	return nil
}

// HasRole reports whether the session user's role satisfies required.
// Unauthenticated sessions have no role.
func (s *Service) HasRole(sess *Session, required Role) bool {
	if !sess.IsAuthenticated() {
		return false
	}
	return sess.User.Role.Satisfies(required)
}

// RequireRole is RequireAuthentication followed by a role check.
func (s *Service) RequireRole(sess *Session, required Role) error {
	if err := s.RequireAuthentication(sess); err != nil {
		return err
	}
	if !s.HasRole(sess, required) {
		return oops.Code(CodeForbidden).
			With("required_role", required.String()).
			With("user_role", sess.User.Role.String()).
			Wrapf(ErrForbidden, "%s role required", required)
	}
	return nil
}

// CurrentUser returns the session's user snapshot.
func (s *Service) CurrentUser(sess *Session) (*User, bool) {
	if !sess.IsAuthenticated() {
		return nil, false
	}
	return sess.User, true
}

// ListUsers returns every account, newest first. Admin only.
func (s *Service) ListUsers(ctx context.Context, sess *Session) ([]*User, error) {
	if err := s.RequireRole(sess, RoleAdmin); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "failed to list users", err)
		return nil, asStoreUnavailable("list users", err)
	}
	return users, nil
}

// UserStats summarises a user listing.
type UserStats struct {
	Total    int `json:"total"`
	Admins   int `json:"admins"`
	Managers int `json:"managers"`
}

// SummarizeUsers counts users by role.
func SummarizeUsers(users []*User) UserStats {
	stats := UserStats{Total: len(users)}
	for _, u := range users {
		switch u.Role {
		case RoleAdmin:
			stats.Admins++
		case RoleManager:
			stats.Managers++
		}
	}
	return stats
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
}

func unauthenticated(reason string) error {
	return oops.Code(CodeUnauthenticated).
		With("reason", reason).
		Wrap(ErrUnauthenticated)
}

func asStoreUnavailable(operation string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return StoreUnavailable(operation, err)
}
