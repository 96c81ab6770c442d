// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// DefaultSessionTimeout is how long a login stays valid.
const DefaultSessionTimeout = 30 * time.Minute

// SessionTokenBytes is the size of a client session token (64 hex chars).
const SessionTokenBytes = 32

// Session is the authentication state of one client.
// It is not safe for concurrent use; callers serialise access per client.
type Session struct {
	Authenticated bool
	// User is a snapshot taken at login. It is not refreshed if the stored row changes.
	User      *User
	LoginTime time.Time
}

// NewSession returns an empty, unauthenticated session.
func NewSession() *Session {
	return &Session{}
}

// IsAuthenticated reports whether the session holds a logged-in user.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Authenticated && s.User != nil
}

// IsExpiredAt reports whether a login made at LoginTime has outlived timeout at now.
// It has no side effects. An unauthenticated session is always expired.
func (s *Session) IsExpiredAt(now time.Time, timeout time.Duration) bool {
	if !s.IsAuthenticated() {
		return true
	}
	return now.Sub(s.LoginTime) > timeout
}

// Expire clears the session back to its unauthenticated state.
func (s *Session) Expire() {
	if s == nil {
		return
	}
	*s = Session{}
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the client; only the hash is kept server-side.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
