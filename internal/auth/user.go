// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// Credential validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MaxEmailLength    = 100
	MinPasswordLength = 8
)

// usernameRegex matches usernames made only of letters, digits and underscores.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// User is a stored account.
type User struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Clone returns a copy of u that shares no pointers with it.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

// ValidateUsername checks length (3-50) and charset (letters, digits, underscore).
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return validationError(CodeBadUsername, "username must be 3-50 characters")
	}
	if !usernameRegex.MatchString(username) {
		return validationError(CodeBadUsername, "username may contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidateEmail requires an "@", a "." somewhere after the first "@", and
// at most MaxEmailLength characters.
func ValidateEmail(email string) error {
	if utf8.RuneCountInString(email) > MaxEmailLength {
		return validationError(CodeBadEmail, "email address must be at most 100 characters")
	}
	_, domain, found := strings.Cut(email, "@")
	if !found || !strings.Contains(domain, ".") {
		return validationError(CodeBadEmail, "email address is not valid")
	}
	return nil
}

// ValidatePassword requires at least MinPasswordLength characters.
func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return validationError(CodeWeakPassword, "password must be at least 8 characters long")
	}
	return nil
}

// UserRepository is the credential store.
// Uniqueness of username and email is enforced by the implementation;
// the role hierarchy is not.
type UserRepository interface {
	// Create inserts user and fills in ID and CreatedAt.
	// Returns an error matching ErrDuplicateCredential on a username or email clash.
	Create(ctx context.Context, user *User) error

	// GetByUsername looks up a user by exact username.
	// Returns an error matching ErrNotFound if absent.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// TouchLastLogin sets last_login for the user.
	TouchLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// UpdatePasswordHash replaces the stored hash.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error

	// List returns every user, newest first.
	List(ctx context.Context) ([]*User, error)
}
