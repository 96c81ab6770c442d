// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/staffboard/staffboard/internal/auth"
	"github.com/staffboard/staffboard/internal/auth/postgres"
)

var _ = Describe("UserRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.UserRepository
	)

	newUser := func(username, email string, role auth.Role) *auth.User {
		return &auth.User{Username: username, Email: email, PasswordHash: "hash", Role: role}
	}

	BeforeEach(func() {
		ctx = context.Background()
		Expect(testDB.Truncate(ctx, "users")).To(Succeed())
		repo = postgres.NewUserRepository(testDB.Pool)
	})

	It("round-trips a user", func() {
		user := newUser("alice", "alice@x.com", auth.RoleManager)
		Expect(repo.Create(ctx, user)).To(Succeed())
		Expect(user.ID.String()).NotTo(BeEmpty())
		Expect(user.CreatedAt).NotTo(BeZero())

		stored, err := repo.GetByUsername(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.ID).To(Equal(user.ID))
		Expect(stored.Email).To(Equal("alice@x.com"))
		Expect(stored.Role).To(Equal(auth.RoleManager))
		Expect(stored.LastLogin).To(BeNil())
	})

	It("matches usernames exactly", func() {
		Expect(repo.Create(ctx, newUser("alice", "alice@x.com", auth.RoleUser))).To(Succeed())

		_, err := repo.GetByUsername(ctx, "Alice")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("reports which field collided", func() {
		Expect(repo.Create(ctx, newUser("alice", "alice@x.com", auth.RoleUser))).To(Succeed())

		err := repo.Create(ctx, newUser("alice", "other@x.com", auth.RoleUser))
		Expect(err).To(MatchError(auth.ErrDuplicateCredential))
		Expect(auth.ErrorCode(err)).To(Equal(auth.CodeDuplicateCredential))

		err = repo.Create(ctx, newUser("alice2", "alice@x.com", auth.RoleUser))
		Expect(err).To(MatchError(auth.ErrDuplicateCredential))
	})

	It("lets exactly one concurrent registration win", func() {
		const workers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			dupes     int
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				err := repo.Create(ctx, newUser("racer", "racer@x.com", auth.RoleUser))
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					successes++
				} else {
					Expect(err).To(MatchError(auth.ErrDuplicateCredential))
					dupes++
				}
			}()
		}
		wg.Wait()

		Expect(successes).To(Equal(1))
		Expect(dupes).To(Equal(workers - 1))
	})

	It("touches last login", func() {
		user := newUser("alice", "alice@x.com", auth.RoleUser)
		Expect(repo.Create(ctx, user)).To(Succeed())

		at := time.Now().UTC().Truncate(time.Microsecond)
		Expect(repo.TouchLastLogin(ctx, user.ID, at)).To(Succeed())

		stored, err := repo.GetByUsername(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.LastLogin).NotTo(BeNil())
		Expect(stored.LastLogin.Equal(at)).To(BeTrue())
	})

	It("updates the password hash", func() {
		user := newUser("alice", "alice@x.com", auth.RoleUser)
		Expect(repo.Create(ctx, user)).To(Succeed())
		Expect(repo.UpdatePasswordHash(ctx, user.ID, "newhash")).To(Succeed())

		stored, err := repo.GetByUsername(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.PasswordHash).To(Equal("newhash"))
	})

	It("lists newest first", func() {
		Expect(repo.Create(ctx, newUser("first", "first@x.com", auth.RoleUser))).To(Succeed())
		time.Sleep(5 * time.Millisecond)
		Expect(repo.Create(ctx, newUser("second", "second@x.com", auth.RoleAdmin))).To(Succeed())

		users, err := repo.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(users).To(HaveLen(2))
		Expect(users[0].Username).To(Equal("second"))
		Expect(users[1].Username).To(Equal("first"))
	})

	It("backs the auth service end to end", func() {
		svc, err := auth.NewAuthService(repo, auth.NewArgon2idHasher())
		Expect(err).NotTo(HaveOccurred())

		Expect(svc.Register(ctx, "alice", "alice@x.com", "password1", auth.RoleUser)).To(Succeed())
		user, err := svc.Authenticate(ctx, "alice", "password1")
		Expect(err).NotTo(HaveOccurred())
		Expect(user.PasswordHash).To(BeEmpty())

		_, err = svc.Authenticate(ctx, "alice", "wrong")
		Expect(err).To(MatchError(auth.ErrInvalidCredentials))
	})
})
