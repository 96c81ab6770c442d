// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Sentinel errors. Coded oops errors wrap these so callers can use errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is wrapped by every input validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateCredential is returned when a username or email is already taken.
	ErrDuplicateCredential = errors.New("username or email already exists")

	// ErrStoreUnavailable is returned when the credential store cannot serve a call.
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// ErrInvalidCredentials is returned for both unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUnauthenticated is returned when a session is missing, cleared or timed out.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden is returned when an authenticated session lacks the required role.
	ErrForbidden = errors.New("access denied")
)

// Error codes carried by oops errors.
const (
	CodeBadUsername         = "VALIDATION_BAD_USERNAME"
	CodeBadEmail            = "VALIDATION_BAD_EMAIL"
	CodeWeakPassword        = "VALIDATION_WEAK_PASSWORD"
	CodePasswordMismatch    = "VALIDATION_PASSWORD_MISMATCH"
	CodeBadRole             = "VALIDATION_BAD_ROLE"
	CodeOutOfRange          = "VALIDATION_OUT_OF_RANGE"
	CodeDuplicateCredential = "AUTH_DUPLICATE_CREDENTIAL"
	CodeStoreUnavailable    = "STORE_UNAVAILABLE"
	CodeInvalidCredentials  = "AUTH_INVALID_CREDENTIALS"
	CodeUnauthenticated     = "AUTH_UNAUTHENTICATED"
	CodeForbidden           = "AUTH_FORBIDDEN"
)

// Reasons attached to Unauthenticated errors.
const (
	ReasonNotLoggedIn     = "not_logged_in"
	ReasonSessionTimedOut = "session_timed_out"
)

// ErrorCode returns the oops code of err, or "" if err carries none.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// StoreUnavailable wraps a store failure so that it matches ErrStoreUnavailable.
// The cause is kept in the error context for logging.
func StoreUnavailable(operation string, cause error) error {
	return oops.Code(CodeStoreUnavailable).
		With("operation", operation).
		With("cause", cause.Error()).
		Wrap(ErrStoreUnavailable)
}

// DuplicateCredential builds the error returned when field collides with an existing user.
func DuplicateCredential(field string) error {
	return oops.Code(CodeDuplicateCredential).
		With("field", field).
		Wrap(ErrDuplicateCredential)
}

// OutOfRange reports a value the store rejected as too long or too large.
// It matches ErrValidation so transports treat it as a client error.
func OutOfRange(operation string, cause error) error {
	return oops.Code(CodeOutOfRange).
		With("operation", operation).
		With("cause", cause.Error()).
		Wrapf(ErrValidation, "value out of range")
}

func validationError(code, msg string) error {
	return oops.Code(code).Wrapf(ErrValidation, "%s", msg)
}
