// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

// Package postgres implements employee.Repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/staffboard/staffboard/internal/auth"
	"github.com/staffboard/staffboard/internal/employee"
	"github.com/staffboard/staffboard/internal/store"
)

const employeeColumns = `id, name, email, department, salary::float8, hire_date, created_at`

// EmployeeRepository implements employee.Repository using PostgreSQL.
type EmployeeRepository struct {
	db store.Querier
}

// NewEmployeeRepository creates a new EmployeeRepository.
func NewEmployeeRepository(db store.Querier) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// Create inserts e, assigning its ID and CreatedAt.
func (r *EmployeeRepository) Create(ctx context.Context, e *employee.Employee) error {
	id := ulid.Make()

	var createdAt time.Time
	err := r.db.QueryRow(ctx, `
		INSERT INTO employees (id, name, email, department, salary, hire_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`,
		id.String(),
		e.Name,
		e.Email,
		string(e.Department),
		e.Salary,
		e.HireDate,
	).Scan(&createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return employee.DuplicateEmail()
		}
		if pgErr != nil && (pgErr.Code == pgerrcode.StringDataRightTruncationDataException ||
			pgErr.Code == pgerrcode.NumericValueOutOfRange) {
			return auth.OutOfRange("insert employee", err)
		}
		return auth.StoreUnavailable("insert employee", err)
	}

	e.ID = id
	e.CreatedAt = createdAt
	return nil
}

// List returns every employee, most recent hire first.
func (r *EmployeeRepository) List(ctx context.Context) ([]*employee.Employee, error) {
	return r.query(ctx, "list employees", `
		SELECT `+employeeColumns+`
		FROM employees
		ORDER BY hire_date DESC, created_at DESC
	`)
}

// Dashboard computes the aggregates with one query per figure.
func (r *EmployeeRepository) Dashboard(ctx context.Context) (*employee.Dashboard, error) {
	dash := &employee.Dashboard{}

	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(ROUND(AVG(salary), 2), 0)::float8
		FROM employees
	`).Scan(&dash.Total, &dash.AverageSalary)
	if err != nil {
		return nil, auth.StoreUnavailable("count employees", err)
	}

	if dash.Departments, err = r.departmentCounts(ctx); err != nil {
		return nil, err
	}
	if dash.HireTimeline, err = r.hireTimeline(ctx); err != nil {
		return nil, err
	}

	dash.RecentHires, err = r.query(ctx, "recent hires", `
		SELECT `+employeeColumns+`
		FROM employees
		ORDER BY hire_date DESC, created_at DESC
		LIMIT $1
	`, employee.RecentHiresLimit)
	if err != nil {
		return nil, err
	}
	return dash, nil
}

func (r *EmployeeRepository) departmentCounts(ctx context.Context) ([]employee.DepartmentCount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT department, COUNT(*) AS employee_count
		FROM employees
		GROUP BY department
		ORDER BY employee_count DESC, department
	`)
	if err != nil {
		return nil, auth.StoreUnavailable("department counts", err)
	}
	defer rows.Close()

	var out []employee.DepartmentCount
	for rows.Next() {
		var dc employee.DepartmentCount
		var dept string
		if err := rows.Scan(&dept, &dc.Count); err != nil {
			return nil, auth.StoreUnavailable("scan department count", err)
		}
		dc.Department = employee.Department(dept)
		out = append(out, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, auth.StoreUnavailable("iterate department counts", err)
	}
	return out, nil
}

func (r *EmployeeRepository) hireTimeline(ctx context.Context) ([]employee.MonthlyHires, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DATE_TRUNC('month', hire_date)::date AS hire_month, COUNT(*) AS hires_count
		FROM employees
		GROUP BY hire_month
		ORDER BY hire_month
	`)
	if err != nil {
		return nil, auth.StoreUnavailable("hire timeline", err)
	}
	defer rows.Close()

	var out []employee.MonthlyHires
	for rows.Next() {
		var mh employee.MonthlyHires
		if err := rows.Scan(&mh.Month, &mh.Hires); err != nil {
			return nil, auth.StoreUnavailable("scan hire timeline", err)
		}
		out = append(out, mh)
	}
	if err := rows.Err(); err != nil {
		return nil, auth.StoreUnavailable("iterate hire timeline", err)
	}
	return out, nil
}

func (r *EmployeeRepository) query(ctx context.Context, operation, sql string, args ...any) ([]*employee.Employee, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, auth.StoreUnavailable(operation, err)
	}
	defer rows.Close()

	var out []*employee.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, auth.StoreUnavailable(operation, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, auth.StoreUnavailable(operation, err)
	}
	return out, nil
}

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var (
		idStr string
		dept  string
		e     employee.Employee
	)
	if err := row.Scan(&idStr, &e.Name, &e.Email, &dept, &e.Salary, &e.HireDate, &e.CreatedAt); err != nil {
		return nil, oops.Code("EMPLOYEE_SCAN_FAILED").With("operation", "scan employee").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("EMPLOYEE_INVALID_ID").With("id", idStr).Wrap(err)
	}
	e.ID = id
	e.Department = employee.Department(dept)
	return &e, nil
}

// Compile-time interface check.
var _ employee.Repository = (*EmployeeRepository)(nil)
