// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package employee

import "time"

// RecentHiresLimit is how many hires Dashboard.RecentHires holds.
const RecentHiresLimit = 10

// DepartmentCount is the head count of one department.
type DepartmentCount struct {
	Department Department `json:"department"`
	Count      int        `json:"count"`
}

// MonthlyHires counts hires in the month starting at Month.
type MonthlyHires struct {
	Month time.Time `json:"month"`
	Hires int       `json:"hires"`
}

// Dashboard holds the workforce aggregates.
//
// AverageSalary is rounded to two places and is 0 with no employees.
// Departments is ordered by count descending, HireTimeline by month
// ascending, and RecentHires by hire date descending.
type Dashboard struct {
	Total         int               `json:"total"`
	AverageSalary float64           `json:"average_salary"`
	Departments   []DepartmentCount `json:"departments"`
	HireTimeline  []MonthlyHires    `json:"hire_timeline"`
	RecentHires   []*Employee       `json:"recent_hires"`
}
