// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/staffboard/staffboard/internal/access"
	"github.com/staffboard/staffboard/internal/auth"
	authpg "github.com/staffboard/staffboard/internal/auth/postgres"
	"github.com/staffboard/staffboard/internal/employee"
	employeepg "github.com/staffboard/staffboard/internal/employee/postgres"
	"github.com/staffboard/staffboard/internal/observability"
	"github.com/staffboard/staffboard/internal/web"
)

const password = "Sup3rSecret"

// client is one browser: its own cookie jar against the shared server.
type client struct {
	http *http.Client
	base string
}

func newClient(base string) *client {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &client{http: &http.Client{Jar: jar}, base: base}
}

func (c *client) do(method, path string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp.StatusCode, data
}

func (c *client) login(username string) {
	status, body := c.do(http.MethodPost, "/api/login", map[string]string{
		"username": username,
		"password": password,
	})
	Expect(status).To(Equal(http.StatusOK), string(body))
}

func errorCode(body []byte) string {
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	Expect(json.Unmarshal(body, &resp)).To(Succeed())
	return resp.Error.Code
}

var _ = Describe("Staffboard API", func() {
	var (
		ctx     context.Context
		server  *httptest.Server
		handler *web.Handler
		authSvc *auth.Service
	)

	BeforeEach(func() {
		ctx = context.Background()

		Expect(db.Truncate(ctx, "users", "employees")).To(Succeed())

		logger := slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		metrics := observability.NewServer("", nil, logger).Metrics()

		var err error
		authSvc, err = auth.NewAuthServiceWithLogger(authpg.NewUserRepository(db.Pool), auth.NewArgon2idHasher(), logger)
		Expect(err).NotTo(HaveOccurred())

		gate, err := access.NewGate(authSvc, access.DefaultPolicy(),
			access.WithLogger(logger),
			access.WithNavigation(access.DefaultNavigation()),
			access.WithDenialHook(metrics.RecordDenial),
		)
		Expect(err).NotTo(HaveOccurred())

		employees, err := employee.NewService(employeepg.NewEmployeeRepository(db.Pool), gate, logger)
		Expect(err).NotTo(HaveOccurred())

		handler, err = web.NewHandler(web.Deps{
			Auth:      authSvc,
			Gate:      gate,
			Employees: employees,
			Metrics:   metrics,
			Logger:    logger,
		}, web.Options{QueryTimeout: 5 * time.Second, LoginRate: 100, LoginBurst: 100})
		Expect(err).NotTo(HaveOccurred())
		server = httptest.NewServer(handler)

		Expect(authSvc.Register(ctx, "alice", "alice@example.com", password, auth.RoleAdmin)).To(Succeed())
		Expect(authSvc.Register(ctx, "bob", "bob@example.com", password, auth.RoleManager)).To(Succeed())
	})

	AfterEach(func() {
		server.Close()
		handler.Close()
	})

	Describe("self-registration", func() {
		It("creates a user-role account that can log in", func() {
			c := newClient(server.URL)
			status, body := c.do(http.MethodPost, "/api/register", map[string]string{
				"username":         "carol",
				"email":            "carol@example.com",
				"password":         password,
				"confirm_password": password,
			})
			Expect(status).To(Equal(http.StatusCreated), string(body))

			c.login("carol")
			status, body = c.do(http.MethodGet, "/api/me", nil)
			Expect(status).To(Equal(http.StatusOK))

			var me map[string]any
			Expect(json.Unmarshal(body, &me)).To(Succeed())
			Expect(me["role"]).To(Equal("user"))
			Expect(me).NotTo(HaveKey("password_hash"))
			Expect(me).To(HaveKey("last_login"))
		})

		It("rejects a taken username or email with 409", func() {
			c := newClient(server.URL)
			status, body := c.do(http.MethodPost, "/api/register", map[string]string{
				"username":         "alice",
				"email":            "other@example.com",
				"password":         password,
				"confirm_password": password,
			})
			Expect(status).To(Equal(http.StatusConflict))
			Expect(errorCode(body)).To(Equal(auth.CodeDuplicateCredential))

			status, _ = c.do(http.MethodPost, "/api/register", map[string]string{
				"username":         "alicia",
				"email":            "alice@example.com",
				"password":         password,
				"confirm_password": password,
			})
			Expect(status).To(Equal(http.StatusConflict))
		})
	})

	Describe("login", func() {
		It("gives the same answer for unknown users and wrong passwords", func() {
			c := newClient(server.URL)
			s1, b1 := c.do(http.MethodPost, "/api/login", map[string]string{"username": "nobody", "password": password})
			s2, b2 := c.do(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "wrong-password"})

			Expect(s1).To(Equal(http.StatusUnauthorized))
			Expect(s2).To(Equal(s1))
			Expect(b2).To(MatchJSON(b1))
		})

		It("records last_login in the database", func() {
			newClient(server.URL).login("bob")

			var lastLogin *time.Time
			err := db.Pool.QueryRow(ctx, "SELECT last_login FROM users WHERE username = $1", "bob").Scan(&lastLogin)
			Expect(err).NotTo(HaveOccurred())
			Expect(lastLogin).NotTo(BeNil())
		})

		It("ends the session on logout", func() {
			c := newClient(server.URL)
			c.login("bob")

			status, _ := c.do(http.MethodPost, "/api/logout", nil)
			Expect(status).To(Equal(http.StatusNoContent))

			status, body := c.do(http.MethodGet, "/api/me", nil)
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(errorCode(body)).To(Equal(auth.CodeUnauthenticated))
		})
	})

	Describe("role-based access", func() {
		It("limits the user list to admins", func() {
			manager := newClient(server.URL)
			manager.login("bob")
			status, body := manager.do(http.MethodGet, "/api/users", nil)
			Expect(status).To(Equal(http.StatusForbidden))
			Expect(errorCode(body)).To(Equal(auth.CodeForbidden))

			admin := newClient(server.URL)
			admin.login("alice")
			status, body = admin.do(http.MethodGet, "/api/users", nil)
			Expect(status).To(Equal(http.StatusOK))

			var resp struct {
				Users []map[string]any `json:"users"`
				Stats auth.UserStats   `json:"stats"`
			}
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Stats).To(Equal(auth.UserStats{Total: 2, Admins: 1, Managers: 1}))
			Expect(resp.Users).To(HaveLen(2))
		})

		It("lets an admin create a manager", func() {
			admin := newClient(server.URL)
			admin.login("alice")
			status, body := admin.do(http.MethodPost, "/api/users", map[string]string{
				"username":         "dave",
				"email":            "dave@example.com",
				"password":         password,
				"confirm_password": password,
				"role":             "manager",
			})
			Expect(status).To(Equal(http.StatusCreated), string(body))

			dave := newClient(server.URL)
			dave.login("dave")
			status, _ = dave.do(http.MethodGet, "/api/employees", nil)
			Expect(status).To(Equal(http.StatusOK))
		})

		It("shows each role only the views it may open", func() {
			manager := newClient(server.URL)
			manager.login("bob")
			status, body := manager.do(http.MethodGet, "/api/navigation", nil)
			Expect(status).To(Equal(http.StatusOK))

			var items []struct {
				View string `json:"view"`
			}
			Expect(json.Unmarshal(body, &items)).To(Succeed())
			views := make([]string, 0, len(items))
			for _, item := range items {
				views = append(views, item.View)
			}
			Expect(views).To(ContainElement(access.ViewEmployeesList))
			Expect(views).NotTo(ContainElement(access.ViewUsersList))
		})
	})

	Describe("employees", func() {
		It("stores employees and summarises them on the dashboard", func() {
			manager := newClient(server.URL)
			manager.login("bob")

			for _, e := range []map[string]any{
				{"name": "Ann", "email": "ann@corp.test", "department": "Engineering", "salary": 100000, "hire_date": "2024-01-15"},
				{"name": "Ben", "email": "ben@corp.test", "department": "Engineering", "salary": 80000, "hire_date": "2024-03-01"},
				{"name": "Cat", "email": "cat@corp.test", "department": "Sales", "salary": 60000, "hire_date": "2024-03-20"},
			} {
				status, body := manager.do(http.MethodPost, "/api/employees", e)
				Expect(status).To(Equal(http.StatusCreated), string(body))
			}

			status, body := manager.do(http.MethodGet, "/api/employees", nil)
			Expect(status).To(Equal(http.StatusOK))
			var list []employee.Employee
			Expect(json.Unmarshal(body, &list)).To(Succeed())
			Expect(list).To(HaveLen(3))

			status, body = manager.do(http.MethodGet, "/api/dashboard", nil)
			Expect(status).To(Equal(http.StatusOK))
			var dash employee.Dashboard
			Expect(json.Unmarshal(body, &dash)).To(Succeed())
			Expect(dash.Total).To(Equal(3))
			Expect(dash.AverageSalary).To(BeNumerically("~", 80000, 0.01))
			Expect(dash.Departments).To(ContainElement(employee.DepartmentCount{Department: employee.Engineering, Count: 2}))
		})

		It("rejects a duplicate employee email", func() {
			manager := newClient(server.URL)
			manager.login("bob")
			e := map[string]any{"name": "Ann", "email": "ann@corp.test", "department": "HR", "salary": 50000, "hire_date": "2023-06-01"}

			status, _ := manager.do(http.MethodPost, "/api/employees", e)
			Expect(status).To(Equal(http.StatusCreated))
			status, _ = manager.do(http.MethodPost, "/api/employees", e)
			Expect(status).To(Equal(http.StatusConflict))
		})

		It("requires a login", func() {
			anon := newClient(server.URL)

			status, body := anon.do(http.MethodGet, "/api/employees", nil)
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(errorCode(body)).To(Equal(auth.CodeUnauthenticated))
			status, _ = anon.do(http.MethodGet, "/api/dashboard", nil)
			Expect(status).To(Equal(http.StatusUnauthorized))
		})
	})
})
