// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/staffboard/staffboard/internal/access"
	"github.com/staffboard/staffboard/internal/auth"
	"github.com/staffboard/staffboard/internal/employee"
	"github.com/staffboard/staffboard/pkg/errutil"
)

// Codes used only by the HTTP layer.
const (
	CodeMalformedRequest = "REQUEST_MALFORMED"
	CodeRateLimited      = "REQUEST_RATE_LIMITED"
	CodeInternal         = "INTERNAL"
)

// Client-facing messages keyed by error code. Error context such as the
// colliding field or the username stays in the logs.
var messages = map[string]string{
	auth.CodeBadUsername:         "Username must be 3-50 characters: letters, numbers and underscores only.",
	auth.CodeBadEmail:            "Please enter a valid email address of at most 100 characters.",
	auth.CodeWeakPassword:        "Password must be at least 8 characters long.",
	auth.CodePasswordMismatch:    "Passwords do not match.",
	auth.CodeBadRole:             "Role must be one of user, manager, admin.",
	auth.CodeOutOfRange:          "A value is too long or too large.",
	auth.CodeDuplicateCredential: "Username or email already exists.",
	auth.CodeInvalidCredentials:  "Invalid username or password.",
	auth.CodeUnauthenticated:     "Please log in to access this page.",
	auth.CodeForbidden:           "You do not have permission to access this page.",
	access.CodeUnknownView:       "You do not have permission to access this page.",
	auth.CodeStoreUnavailable:    "The service is temporarily unavailable. Please try again.",
	employee.CodeBadName:         "Name must be 1 to 100 characters.",
	employee.CodeBadDepartment:   "Department must be one of Engineering, Marketing, Sales, HR.",
	employee.CodeBadSalary:       "Salary must be between 0 and 9,999,999,999.99.",
	employee.CodeBadHireDate:     "Hire date must be a valid date (YYYY-MM-DD).",
	employee.CodeDuplicateEmail:  "An employee with this email already exists.",
	CodeMalformedRequest:         "The request body is not valid JSON.",
	CodeRateLimited:              "Too many login attempts. Please wait and try again.",
	CodeInternal:                 "An unexpected error occurred.",
}

const sessionExpiredMessage = "Your session has expired. Please log in again."

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrDuplicateCredential), errors.Is(err, employee.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorDetailFor(err error, status int) errorDetail {
	code := auth.ErrorCode(err)
	msg, known := messages[code]
	if !known {
		switch status {
		case http.StatusServiceUnavailable:
			code = auth.CodeStoreUnavailable
		case http.StatusInternalServerError:
			code = CodeInternal
		}
		msg = messages[code]
		if msg == "" {
			msg = http.StatusText(status)
		}
	}

	if code == auth.CodeUnauthenticated {
		if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Context()["reason"] == auth.ReasonSessionTimedOut {
			msg = sessionExpiredMessage
		}
	}
	return errorDetail{Code: code, Message: msg}
}

// writeError maps err to a status and a generic message. Server-side
// failures are logged with their full context.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), logger, "request failed", err)
	}
	writeJSON(w, status, errorBody{Error: errorDetailFor(err, status)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson // client may disconnect; nothing useful to do
	json.NewEncoder(w).Encode(v)
}

func malformedRequest(err error) error {
	return oops.Code(CodeMalformedRequest).
		With("cause", err.Error()).
		Wrapf(auth.ErrValidation, "malformed request body")
}
