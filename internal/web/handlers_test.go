// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package web_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/staffboard/staffboard/internal/auth"
	"github.com/staffboard/staffboard/internal/employee"
	"github.com/staffboard/staffboard/internal/web"
)

type userBody struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	LastLogin *time.Time `json:"last_login"`
}

func TestNewHandler_RequiresDeps(t *testing.T) {
	_, err := web.NewHandler(web.Deps{}, web.Options{})
	require.Error(t, err)
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t, web.Options{CookieSecure: true})

	rec := env.do(http.MethodPost, "/api/login", map[string]string{
		"username": "alice",
		"password": testPassword,
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeJSON[userBody](t, rec)
	assert.Equal(t, "alice", body.Username)
	assert.Equal(t, "admin", body.Role)
	require.NotNil(t, body.LastLogin)
	assert.NotContains(t, rec.Body.String(), "plain$", "the password hash is never returned")

	cookie := sessionCookie(t, rec)
	assert.Len(t, cookie.Value, 2*auth.SessionTokenBytes)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, int((30 * time.Minute).Seconds()), cookie.MaxAge)
	assert.Equal(t, 1, env.handler.Sessions().Len())
	assert.InDelta(t, 1, testutil.ToFloat64(env.metrics.LoginAttempts.WithLabelValues("success")), 0)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t, web.Options{})

	unknown := env.do(http.MethodPost, "/api/login", map[string]string{"username": "mallory", "password": testPassword}, nil)
	wrong := env.do(http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "not-it-at-all"}, nil)

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
	assert.Equal(t, auth.CodeInvalidCredentials, decodeError(t, unknown).Error.Code)
	assert.Empty(t, unknown.Result().Cookies())
	assert.Equal(t, 0, env.handler.Sessions().Len())
	assert.InDelta(t, 2, testutil.ToFloat64(env.metrics.LoginAttempts.WithLabelValues("invalid_credentials")), 0)
}

func TestLogin_RateLimitedPerIP(t *testing.T) {
	env := newTestEnv(t, web.Options{LoginRate: 0.001, LoginBurst: 2})
	creds := map[string]string{"username": "alice", "password": "wrong-password"}

	for range 2 {
		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/api/login", creds, nil).Code)
	}
	rec := env.do(http.MethodPost, "/api/login", creds, nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, web.CodeRateLimited, decodeError(t, rec).Error.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.InDelta(t, 1, testutil.ToFloat64(env.metrics.LoginAttempts.WithLabelValues("rate_limited")), 0)
}

func TestLogin_RotatesToken(t *testing.T) {
	env := newTestEnv(t, web.Options{})
	first := env.login("carol")

	rec := env.do(http.MethodPost, "/api/login", map[string]string{"username": "bob", "password": testPassword}, first)
	require.Equal(t, http.StatusOK, rec.Code)
	second := sessionCookie(t, rec)

	assert.NotEqual(t, first.Value, second.Value)
	assert.Equal(t, 1, env.handler.Sessions().Len(), "the previous session is retired")
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/navigation", nil, first).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/me", nil, second).Code)
}

func TestLogin_LeavesPreviousSessionUntouched(t *testing.T) {
	env := newTestEnv(t, web.Options{})
	first := env.login("carol")

	// Hold the old session as a concurrent request would.
	old, found, release := env.handler.Sessions().Acquire(first.Value)
	require.True(t, found)
	release()

	rec := env.do(http.MethodPost, "/api/login", map[string]string{"username": "bob", "password": testPassword}, first)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "carol", old.User.Username, "the new login is never written into the old session")
}

func TestLogin_MalformedBody(t *testing.T) {
	env := newTestEnv(t, web.Options{})

	rec := env.do(http.MethodPost, "/api/login", "{not json", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, web.CodeMalformedRequest, decodeError(t, rec).Error.Code)
}

func TestLogout_ClearsSession(t *testing.T) {
	env := newTestEnv(t, web.Options{})
	cookie := env.login("alice")

	rec := env.do(http.MethodPost, "/api/logout", nil, cookie)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)
	assert.Equal(t, 0, env.handler.Sessions().Len())
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/me", nil, cookie).Code)
}

func TestLogout_WithoutSessionIsHarmless(t *testing.T) {
	env := newTestEnv(t, web.Options{})
	assert.Equal(t, http.StatusNoContent, env.do(http.MethodPost, "/api/logout", nil, nil).Code)
}

func TestRegister_ForcesUserRole(t *testing.T) {
	env := newTestEnv(t, web.Options{})

	rec := env.do(http.MethodPost, "/api/register", map[string]string{
		"username":         "dave",
		"email":            "dave@example.com",
		"password":         testPassword,
		"confirm_password": testPassword,
		"role":             "admin",
	}, nil)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, auth.RoleUser, env.users.get("dave").Role)
	assert.InDelta(t, 1, testutil.ToFloat64(env.metrics.Registrations.WithLabelValues("created")), 0)
}

func TestRegister_Errors(t *testing.T) {
	valid := func() map[string]string {
		return map[string]string{
			"username":         "dave",
			"email":            "dave@example.com",
			"password":         testPassword,
			"confirm_password": testPassword,
		}
	}

	tests := []struct {
		name       string
		mutate     func(map[string]string)
		wantStatus int
		wantCode   string
	}{
		{"short username", func(b map[string]string) { b["username"] = "ab" }, http.StatusBadRequest, auth.CodeBadUsername},
		{"bad email", func(b map[string]string) { b["email"] = "nope" }, http.StatusBadRequest, auth.CodeBadEmail},
		{"email too long", func(b map[string]string) { b["email"] = strings.Repeat("d", 95) + "@x.com" }, http.StatusBadRequest, auth.CodeBadEmail},
		{"weak password", func(b map[string]string) { b["password"], b["confirm_password"] = "short", "short" }, http.StatusBadRequest, auth.CodeWeakPassword},
		{"mismatch", func(b map[string]string) { b["confirm_password"] = "Different1" }, http.StatusBadRequest, auth.CodePasswordMismatch},
		{"taken username", func(b map[string]string) { b["username"] = "alice" }, http.StatusConflict, auth.CodeDuplicateCredential},
		{"taken email", func(b map[string]string) { b["email"] = "bob@example.com" }, http.StatusConflict, auth.CodeDuplicateCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, web.Options{})
			body := valid()
			tt.mutate(body)

			rec := env.do(http.MethodPost, "/api/register", body, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			apiErr := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, apiErr.Error.Code)
			assert.NotContains(t, apiErr.Error.Message, "email:", "the colliding field is not disclosed")
		})
	}
}

func TestMe_ReturnsLoginSnapshot(t *testing.T) {
	env := newTestEnv(t, web.Options{})
	cookie := env.login("carol")

	rec := env.do(http.MethodGet, "/api/me", nil, cookie)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[userBody](t, rec)
	assert.Equal(t, "carol", body.Username)
	assert.Equal(t, "carol@example.com", body.Email)
	require.NotNil(t, body.LastLogin)
	assert.True(t, body.LastLogin.Equal(env.clock.Now()))
}

func TestMe_Unauthenticated(t *testing.T) {
	env := newTestEnv(t, web.Options{})

	rec := env.do(http.MethodGet, "/api/me", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.CodeUnauthenticated, decodeError(t, rec).Error.Code)
	assert.InDelta(t, 1, testutil.ToFloat64(env.metrics.AccessDenied.WithLabelValues("unauthenticated")), 0)
}

func TestSession_TimesOut(t *testing.T) {
	env := newTestEnv(t, web.Options{})
	cookie := env.login("carol")

	env.clock.Advance(30 * time.Minute)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/me", nil, cookie).Code)

	env.clock.Advance(time.Second)
	rec := env.do(http.MethodGet, "/api/me", nil, cookie)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Your session has expired. Please log in again.", decodeError(t, rec).Error.Message)

	// The cleared session stays cleared.
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/navigation", nil, cookie).Code)
}

func TestNavigation_ByRole(t *testing.T) {
	tests := []struct {
		username string
		want     []string
	}{
		{"carol", []string{"view:dashboard", "view:employees:list", "view:employees:add"}},
		{"bob", []string{"view:dashboard", "view:employees:list", "view:employees:add", "view:profile"}},
		{"alice", []string{"view:dashboard", "view:employees:list", "view:employees:add", "view:profile", "view:users:list", "view:register_user"}},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			env := newTestEnv(t, web.Options{})
			cookie := env.login(tt.username)

			rec := env.do(http.MethodGet, "/api/navigation", nil, cookie)

			require.Equal(t, http.StatusOK, rec.Code)
			items := decodeJSON[[]struct {
				View  string `json:"view"`
				Label string `json:"label"`
			}](t, rec)
			views := make([]string, 0, len(items))
			for _, item := range items {
				views = append(views, item.View)
				assert.NotEmpty(t, item.Label)
			}
			assert.Equal(t, tt.want, views)
		})
	}
}

func TestNavigation_Unauthenticated(t *testing.T) {
	env := newTestEnv(t, web.Options{})
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/navigation", nil, nil).Code)
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t, web.Options{})

	t.Run("admin", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/users", nil, env.login("alice"))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeJSON[struct {
			Users []userBody `json:"users"`
			Stats struct {
				Total    int `json:"total"`
				Admins   int `json:"admins"`
				Managers int `json:"managers"`
			} `json:"stats"`
		}](t, rec)
		assert.Len(t, body.Users, 3)
		assert.Equal(t, 3, body.Stats.Total)
		assert.Equal(t, 1, body.Stats.Admins)
		assert.Equal(t, 1, body.Stats.Managers)
		assert.NotContains(t, rec.Body.String(), "plain$")
	})

	t.Run("manager is forbidden", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/users", nil, env.login("bob"))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, auth.CodeForbidden, decodeError(t, rec).Error.Code)
		assert.InDelta(t, 1, testutil.ToFloat64(env.metrics.AccessDenied.WithLabelValues("insufficient_role")), 0)
	})
}

func TestListUsers_StoreUnavailable(t *testing.T) {
	env := newTestEnv(t, web.Options{})
	cookie := env.login("alice")
	env.users.listErr = errors.New("connection refused")

	rec := env.do(http.MethodGet, "/api/users", nil, cookie)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, auth.CodeStoreUnavailable, apiErr.Error.Code)
	assert.NotContains(t, apiErr.Error.Message, "connection refused")
	assert.Contains(t, env.logs.String(), "connection refused", "the cause is logged")
}

func TestCreateUser_AdminAssignsRole(t *testing.T) {
	env := newTestEnv(t, web.Options{})

	rec := env.do(http.MethodPost, "/api/users", map[string]string{
		"username":         "erin",
		"email":            "erin@example.com",
		"password":         testPassword,
		"confirm_password": testPassword,
		"role":             "Manager",
	}, env.login("alice"))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, auth.RoleManager, env.users.get("erin").Role)
}

func TestCreateUser_Errors(t *testing.T) {
	env := newTestEnv(t, web.Options{})
	body := map[string]string{
		"username":         "erin",
		"email":            "erin@example.com",
		"password":         testPassword,
		"confirm_password": testPassword,
		"role":             "owner",
	}

	rec := env.do(http.MethodPost, "/api/users", body, env.login("alice"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, auth.CodeBadRole, decodeError(t, rec).Error.Code)

	body["role"] = "user"
	rec = env.do(http.MethodPost, "/api/users", body, env.login("bob"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/api/users", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEmployees_DeniedBeforeRepository(t *testing.T) {
	env := newTestEnv(t, web.Options{})

	// The repository mock has no expectations; any call would fail the test.
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/employees", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/dashboard", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/api/employees", map[string]any{
		"name": "Ada", "email": "ada@example.com", "department": "Engineering", "salary": 1, "hire_date": "2024-01-02",
	}, nil).Code)

	rec := env.do(http.MethodPost, "/api/employees", "{not json", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, auth.CodeUnauthenticated, decodeError(t, rec).Error.Code)
}

func TestEmployees_List(t *testing.T) {
	env := newTestEnv(t, web.Options{})
	hired := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	env.employees.On("List", mock.Anything).Return([]*employee.Employee{
		{Name: "Ada", Email: "ada@example.com", Department: employee.Engineering, Salary: 120000, HireDate: hired},
	}, nil).Once()

	rec := env.do(http.MethodGet, "/api/employees", nil, env.login("carol"))

	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeJSON[[]employee.Employee](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Ada", list[0].Name)
	assert.True(t, list[0].HireDate.Equal(hired))
}

func TestEmployees_ListEmptyIsArray(t *testing.T) {
	env := newTestEnv(t, web.Options{})
	env.employees.On("List", mock.Anything).Return(nil, nil).Once()

	rec := env.do(http.MethodGet, "/api/employees", nil, env.login("carol"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestEmployees_Add(t *testing.T) {
	env := newTestEnv(t, web.Options{})
	env.employees.On("Create", mock.Anything, mock.MatchedBy(func(e *employee.Employee) bool {
		return e.Name == "Ada Lovelace" &&
			e.Department == employee.Engineering &&
			e.HireDate.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	})).Return(nil).Once()

	rec := env.do(http.MethodPost, "/api/employees", map[string]any{
		"name":       "  Ada Lovelace ",
		"email":      "ada@example.com",
		"department": "Engineering",
		"salary":     120000.5,
		"hire_date":  "2024-01-02",
	}, env.login("carol"))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Ada Lovelace", decodeJSON[employee.Employee](t, rec).Name)
}

func TestEmployees_AddErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]any
		repoErr    error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unparseable hire date",
			body:       map[string]any{"name": "Ada", "email": "ada@example.com", "department": "Engineering", "salary": 1, "hire_date": "01/02/2024"},
			wantStatus: http.StatusBadRequest,
			wantCode:   employee.CodeBadHireDate,
		},
		{
			name:       "unknown department",
			body:       map[string]any{"name": "Ada", "email": "ada@example.com", "department": "Legal", "salary": 1, "hire_date": "2024-01-02"},
			wantStatus: http.StatusBadRequest,
			wantCode:   employee.CodeBadDepartment,
		},
		{
			name:       "duplicate email",
			body:       map[string]any{"name": "Ada", "email": "ada@example.com", "department": "Sales", "salary": 1, "hire_date": "2024-01-02"},
			repoErr:    employee.DuplicateEmail(),
			wantStatus: http.StatusConflict,
			wantCode:   employee.CodeDuplicateEmail,
		},
		{
			name:       "store failure",
			body:       map[string]any{"name": "Ada", "email": "ada@example.com", "department": "HR", "salary": 1, "hire_date": "2024-01-02"},
			repoErr:    errors.New("connection reset"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   auth.CodeStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, web.Options{})
			if tt.repoErr != nil {
				env.employees.On("Create", mock.Anything, mock.Anything).Return(tt.repoErr).Once()
			}

			rec := env.do(http.MethodPost, "/api/employees", tt.body, env.login("carol"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Error.Code)
		})
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t, web.Options{})
	env.employees.On("Dashboard", mock.Anything).Return(&employee.Dashboard{
		Total:         2,
		AverageSalary: 95000.25,
		Departments:   []employee.DepartmentCount{{Department: employee.Engineering, Count: 2}},
	}, nil).Once()

	rec := env.do(http.MethodGet, "/api/dashboard", nil, env.login("carol"))

	require.Equal(t, http.StatusOK, rec.Code)
	dash := decodeJSON[employee.Dashboard](t, rec)
	assert.Equal(t, 2, dash.Total)
	assert.InDelta(t, 95000.25, dash.AverageSalary, 0.001)
}

func TestQueryDeadlineReachesStore(t *testing.T) {
	env := newTestEnv(t, web.Options{QueryTimeout: 250 * time.Millisecond})
	env.employees.On("List", mock.Anything).
		Return(func(ctx context.Context) ([]*employee.Employee, error) {
			deadline, ok := ctx.Deadline()
			if !ok || time.Until(deadline) > 250*time.Millisecond {
				return nil, errors.New("missing query deadline")
			}
			return nil, nil
		}).Once()

	rec := env.do(http.MethodGet, "/api/employees", nil, env.login("carol"))

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRequestIDAndMetrics(t *testing.T) {
	env := newTestEnv(t, web.Options{})

	rec := env.do(http.MethodGet, "/api/me", nil, nil)

	assert.NotEmpty(t, rec.Header().Get(web.RequestIDHeader))
	assert.Contains(t, env.logs.String(), rec.Header().Get(web.RequestIDHeader))
	assert.InDelta(t, 1, testutil.ToFloat64(env.metrics.HTTPRequests.WithLabelValues("/api/me", "401")), 0)
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, web.Options{})

	rec := env.do(http.MethodGet, "/api/nope", nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Error.Code)
}
