// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package auth

import "strings"

// Role is a user's position in the fixed role hierarchy.
type Role string

// Known roles, lowest first.
const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// DefaultRole is assigned when no role is given.
const DefaultRole = RoleUser

// Roles lists every valid role, lowest first.
func Roles() []Role {
	return []Role{RoleUser, RoleManager, RoleAdmin}
}

// ParseRole converts a raw string into a Role.
// An empty string yields DefaultRole. Matching ignores case and surrounding space.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultRole, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", validationError(CodeBadRole, "role must be one of user, manager, admin")
	}
	return r, nil
}

// Rank returns the role's position: admin 3, manager 2, user 1, anything else 0.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleManager:
		return 2
	case RoleUser:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// Satisfies reports whether r meets a requirement of required.
// The hierarchy is inclusive: admin satisfies manager and user.
func (r Role) Satisfies(required Role) bool {
	return r.Rank() >= required.Rank()
}

func (r Role) String() string {
	return string(r)
}
