// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

// Package auth provides authentication and role checks for Staffboard.
//
// # Domain Types
//
//   - User - a stored account; username and email are unique
//   - Role - closed set user < manager < admin
//   - Session - per-client login state, passed explicitly to every check
//
// A Session's User is a snapshot taken at login. Role changes made after
// login are not seen until the user logs in again.
//
// # Services
//
// Service coordinates the PasswordHasher and the UserRepository:
//   - Register / RegisterWithConfirmation - validate, hash, insert
//   - Authenticate - verify credentials and record last_login
//   - Login / Logout - mutate a Session
//   - SessionTimedOut / RequireAuthentication / HasRole / RequireRole - gate checks
//
// Errors are oops errors that wrap one of the package sentinels
// (ErrValidation, ErrDuplicateCredential, ErrStoreUnavailable,
// ErrInvalidCredentials, ErrUnauthenticated, ErrForbidden).
package auth
