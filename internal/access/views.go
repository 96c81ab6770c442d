// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package access

import "github.com/staffboard/staffboard/internal/auth"

// Views that handlers guard. Names use ':' as the segment separator.
const (
	ViewDashboard     = "view:dashboard"
	ViewEmployeesList = "view:employees:list"
	ViewEmployeesAdd  = "view:employees:add"
	ViewProfile       = "view:profile"
	ViewUsersList     = "view:users:list"
	ViewRegisterUser  = "view:register_user"
)

// Rule grants a view pattern to a minimum role.
type Rule struct {
	Pattern string
	MinRole auth.Role
}

// DefaultPolicy returns the built-in view policy.
// The first matching rule decides.
func DefaultPolicy() []Rule {
	return []Rule{
		{Pattern: "view:users:*", MinRole: auth.RoleAdmin},
		{Pattern: ViewRegisterUser, MinRole: auth.RoleAdmin},
		{Pattern: ViewDashboard, MinRole: auth.RoleUser},
		{Pattern: "view:employees:*", MinRole: auth.RoleUser},
		{Pattern: ViewProfile, MinRole: auth.RoleUser},
	}
}

// NavItem is a navigation link. MinRole may be stricter than the view's
// own rule; it only controls whether the link is listed.
type NavItem struct {
	View    string
	Label   string
	MinRole auth.Role
}

// DefaultNavigation lists the links in display order.
func DefaultNavigation() []NavItem {
	return []NavItem{
		{View: ViewDashboard, Label: "Dashboard", MinRole: auth.RoleUser},
		{View: ViewEmployeesList, Label: "View Employees", MinRole: auth.RoleUser},
		{View: ViewEmployeesAdd, Label: "Add Employee", MinRole: auth.RoleUser},
		{View: ViewProfile, Label: "Profile", MinRole: auth.RoleManager},
		{View: ViewUsersList, Label: "Manage Users", MinRole: auth.RoleAdmin},
		{View: ViewRegisterUser, Label: "Register User", MinRole: auth.RoleAdmin},
	}
}
