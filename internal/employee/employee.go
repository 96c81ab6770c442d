// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

// Package employee manages employee records and the dashboard aggregates
// computed over them.
package employee

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/staffboard/staffboard/internal/auth"
)

// MaxNameLength bounds Employee.Name in runes.
const MaxNameLength = 100

// MaxSalary is the largest salary the NUMERIC(12,2) column holds.
const MaxSalary = 9_999_999_999.99

// Department is one of the fixed departments.
type Department string

// Known departments.
const (
	Engineering Department = "Engineering"
	Marketing   Department = "Marketing"
	Sales       Department = "Sales"
	HR          Department = "HR"
)

// Departments returns the known departments in display order.
func Departments() []Department {
	return []Department{Engineering, Marketing, Sales, HR}
}

// Valid reports whether d is a known department.
func (d Department) Valid() bool {
	switch d {
	case Engineering, Marketing, Sales, HR:
		return true
	}
	return false
}

// ErrDuplicateEmail is returned when an employee email is already on file.
var ErrDuplicateEmail = errors.New("employee email already exists")

// Error codes for employee validation. They wrap auth.ErrValidation.
const (
	CodeBadName        = "EMPLOYEE_BAD_NAME"
	CodeBadDepartment  = "EMPLOYEE_BAD_DEPARTMENT"
	CodeBadSalary      = "EMPLOYEE_BAD_SALARY"
	CodeBadHireDate    = "EMPLOYEE_BAD_HIRE_DATE"
	CodeDuplicateEmail = "EMPLOYEE_DUPLICATE_EMAIL"
)

// Employee is a stored employee record.
type Employee struct {
	ID         ulid.ULID  `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Department Department `json:"department"`
	Salary     float64    `json:"salary"`
	HireDate   time.Time  `json:"hire_date"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Input is the data needed to add an employee.
type Input struct {
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	Salary     float64   `json:"salary"`
	HireDate   time.Time `json:"hire_date"`
}

// Validate checks in field order and returns the first failure.
// The email rule is the same as for user accounts.
func (in Input) Validate() error {
	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return oops.Code(CodeBadName).
			With("max_length", MaxNameLength).
			Wrapf(auth.ErrValidation, "name must be 1 to %d characters", MaxNameLength)
	}
	if err := auth.ValidateEmail(in.Email); err != nil {
		return err
	}
	if !Department(in.Department).Valid() {
		return oops.Code(CodeBadDepartment).
			With("department", in.Department).
			Wrapf(auth.ErrValidation, "department must be one of Engineering, Marketing, Sales, HR")
	}
	if in.Salary < 0 || in.Salary > MaxSalary || math.IsNaN(in.Salary) || math.IsInf(in.Salary, 0) {
		return oops.Code(CodeBadSalary).
			With("max", MaxSalary).
			Wrapf(auth.ErrValidation, "salary must be a number from 0 to %.2f", MaxSalary)
	}
	if in.HireDate.IsZero() {
		return oops.Code(CodeBadHireDate).Wrapf(auth.ErrValidation, "hire date is required")
	}
	return nil
}

// Employee converts validated input into a record. The hire date keeps
// only its calendar day.
func (in Input) Employee() *Employee {
	y, m, d := in.HireDate.Date()
	return &Employee{
		Name:       strings.TrimSpace(in.Name),
		Email:      in.Email,
		Department: Department(in.Department),
		Salary:     in.Salary,
		HireDate:   time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
	}
}

// DuplicateEmail builds the error for an email collision.
func DuplicateEmail() error {
	return oops.Code(CodeDuplicateEmail).Wrap(ErrDuplicateEmail)
}

// Repository stores employees.
type Repository interface {
	// Create inserts e and sets its ID and CreatedAt.
	Create(ctx context.Context, e *Employee) error
	// List returns every employee, most recent hire first.
	List(ctx context.Context) ([]*Employee, error)
	// Dashboard computes the aggregates.
	Dashboard(ctx context.Context) (*Dashboard, error)
}
