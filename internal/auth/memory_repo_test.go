// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package auth_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/staffboard/staffboard/internal/auth"
)

// memoryUserRepo is an in-memory UserRepository that enforces the same
// uniqueness rules as the postgres store.
type memoryUserRepo struct {
	mu        sync.Mutex
	users     map[string]*auth.User
	updateErr error
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*auth.User)}
}

func (r *memoryUserRepo) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.Username]; ok {
		return auth.DuplicateCredential("username")
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return auth.DuplicateCredential("email")
		}
	}
	user.ID = ulid.Make()
	user.CreatedAt = time.Now()
	r.users[user.Username] = user.Clone()
	return nil
}

func (r *memoryUserRepo) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[username]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return u.Clone(), nil
}

func (r *memoryUserRepo) TouchLastLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.ID == id {
			u.LastLogin = &at
			return nil
		}
	}
	return auth.ErrNotFound
}

func (r *memoryUserRepo) UpdatePasswordHash(_ context.Context, id ulid.ULID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.updateErr != nil {
		return r.updateErr
	}
	for _, u := range r.users {
		if u.ID == id {
			u.PasswordHash = hash
			return nil
		}
	}
	return auth.ErrNotFound
}

func (r *memoryUserRepo) List(_ context.Context) ([]*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*auth.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *memoryUserRepo) stored(username string) *auth.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[username]; ok {
		return u.Clone()
	}
	return nil
}
