// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package web

import (
	"sync"
	"time"

	"github.com/staffboard/staffboard/internal/auth"
)

// SessionCookieName carries the client's session token.
const SessionCookieName = "staffboard_session"

type sessionEntry struct {
	mu   sync.Mutex
	sess *auth.Session
}

// SessionStore keeps one auth.Session per client token.
// Only the SHA-256 of a token is kept as the map key. Each entry has its
// own mutex so requests for the same client run one at a time.
type SessionStore struct {
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

// NewSessionStore creates an empty store. timeout is the login lifetime used
// when sweeping.
func NewSessionStore(timeout time.Duration) *SessionStore {
	return &SessionStore{
		timeout: timeout,
		now:     time.Now,
		entries: make(map[string]*sessionEntry),
	}
}

// Acquire returns the session for token, locked for the caller until release
// is called. An empty or unknown token yields a fresh unauthenticated session
// that is not stored. So does a token deleted while the caller waited.
func (s *SessionStore) Acquire(token string) (sess *auth.Session, found bool, release func()) {
	if token == "" {
		return auth.NewSession(), false, func() {}
	}
	key := auth.HashSessionToken(token)

	s.mu.Lock()
	entry, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return auth.NewSession(), false, func() {}
	}

	entry.mu.Lock()
	s.mu.Lock()
	current := s.entries[key] == entry
	s.mu.Unlock()
	if !current {
		entry.mu.Unlock()
		return auth.NewSession(), false, func() {}
	}
	return entry.sess, true, entry.mu.Unlock
}

// Put stores a copy of sess under a new token and returns the token.
func (s *SessionStore) Put(sess *auth.Session) (string, error) {
	token, hash, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}
	cp := *sess

	s.mu.Lock()
	s.entries[hash] = &sessionEntry{sess: &cp}
	s.mu.Unlock()
	return token, nil
}

// Delete forgets token. Unknown tokens are ignored.
func (s *SessionStore) Delete(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	delete(s.entries, auth.HashSessionToken(token))
	s.mu.Unlock()
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops sessions that are logged out or past their timeout and
// returns how many it removed. Entries in use by a request are skipped.
func (s *SessionStore) Sweep() int {
	now := s.now()
	removed := 0

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.entries {
		if !entry.mu.TryLock() {
			continue
		}
		if entry.sess.IsExpiredAt(now, s.timeout) {
			delete(s.entries, key)
			removed++
		}
		entry.mu.Unlock()
	}
	return removed
}
