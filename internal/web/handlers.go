// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/staffboard/staffboard/internal/access"
	"github.com/staffboard/staffboard/internal/auth"
	"github.com/staffboard/staffboard/internal/employee"
	"github.com/staffboard/staffboard/internal/observability"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// HireDateLayout is the accepted hire_date format.
const HireDateLayout = "2006-01-02"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type createUserRequest struct {
	registerRequest
	Role string `json:"role"`
}

type employeeRequest struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Department string  `json:"department"`
	Salary     float64 `json:"salary"`
	HireDate   string  `json:"hire_date"`
}

// userResponse never includes the password hash.
type userResponse struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role.String(),
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

type navItemResponse struct {
	View  string `json:"view"`
	Label string `json:"label"`
}

type usersResponse struct {
	Users []userResponse `json:"users"`
	Stats auth.UserStats `json:"stats"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, r, h.logger, malformedRequest(err))
		return false
	}
	return true
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.auth.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.metrics.RecordLogin(observability.LoginInvalid)
		} else {
			h.metrics.RecordLogin(observability.LoginError)
		}
		writeError(w, r, h.logger, err)
		return
	}

	// A fresh session and token on every login. The previous entry is
	// retired while its lock is still held, so no waiter sees this login.
	st := sessionFrom(r.Context())
	sess := auth.NewSession()
	h.auth.Login(sess, user)

	token, err := h.sessions.Put(sess)
	if err != nil {
		h.metrics.RecordLogin(observability.LoginError)
		writeError(w, r, h.logger, err)
		return
	}
	h.sessions.Delete(st.token)

	http.SetCookie(w, h.sessionCookie(token, int(h.auth.SessionTimeout().Seconds())))
	h.metrics.RecordLogin(observability.LoginSuccess)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context())
	h.auth.Logout(st.sess)
	h.sessions.Delete(st.token)

	http.SetCookie(w, h.sessionCookie("", -1))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// register is public self-service sign-up. The role is always user.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.auth.RegisterWithConfirmation(r.Context(),
		req.Username, req.Email, req.Password, req.ConfirmPassword, auth.RoleUser)
	h.recordRegistration(err)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username})
}

func (h *Handler) recordRegistration(err error) {
	switch {
	case err == nil:
		h.metrics.RecordRegistration(observability.RegistrationCreated)
	case errors.Is(err, auth.ErrDuplicateCredential):
		h.metrics.RecordRegistration(observability.RegistrationDuplicate)
	case errors.Is(err, auth.ErrValidation):
		h.metrics.RecordRegistration(observability.RegistrationInvalid)
	default:
		h.metrics.RecordRegistration(observability.RegistrationError)
	}
}

// me returns the snapshot taken at login.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context())
	if err := h.gate.Require(st.sess, access.ViewProfile); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	user, _ := h.auth.CurrentUser(st.sess)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) navigation(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context())
	if err := h.auth.RequireAuthentication(st.sess); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	items := h.gate.Navigation(st.sess)
	out := make([]navItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, navItemResponse{View: item.View, Label: item.Label})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context())
	if err := h.gate.Require(st.sess, access.ViewUsersList); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	users, err := h.auth.ListUsers(r.Context(), st.sess)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := usersResponse{
		Users: make([]userResponse, 0, len(users)),
		Stats: auth.SummarizeUsers(users),
	}
	for _, u := range users {
		resp.Users = append(resp.Users, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

// createUser lets an admin register an account with any role.
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context())
	if err := h.gate.Require(st.sess, access.ViewRegisterUser); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		h.recordRegistration(err)
		writeError(w, r, h.logger, err)
		return
	}

	err = h.auth.RegisterWithConfirmation(r.Context(),
		req.Username, req.Email, req.Password, req.ConfirmPassword, role)
	h.recordRegistration(err)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"username": req.Username,
		"role":     role.String(),
	})
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context())
	employees, err := h.employees.List(r.Context(), st.sess)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if employees == nil {
		employees = []*employee.Employee{}
	}
	writeJSON(w, http.StatusOK, employees)
}

// addEmployee checks access before reading the body. An unparseable hire
// date is left zero for the service's validation to reject.
func (h *Handler) addEmployee(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context())
	if err := h.gate.Require(st.sess, access.ViewEmployeesAdd); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req employeeRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := employee.Input{
		Name:       req.Name,
		Email:      req.Email,
		Department: req.Department,
		Salary:     req.Salary,
	}
	if d, err := time.Parse(HireDateLayout, req.HireDate); err == nil {
		in.HireDate = d
	}

	e, err := h.employees.Add(r.Context(), st.sess, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	st := sessionFrom(r.Context())
	dash, err := h.employees.Dashboard(r.Context(), st.sess)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}
