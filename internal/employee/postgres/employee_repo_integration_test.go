// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/staffboard/staffboard/internal/employee"
	"github.com/staffboard/staffboard/internal/employee/postgres"
)

var _ = Describe("EmployeeRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.EmployeeRepository
	)

	add := func(name string, dept employee.Department, salary float64, hire time.Time) {
		e := &employee.Employee{
			Name:       name,
			Email:      fmt.Sprintf("%s@x.com", name),
			Department: dept,
			Salary:     salary,
			HireDate:   hire,
		}
		Expect(repo.Create(ctx, e)).To(Succeed())
	}
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	BeforeEach(func() {
		ctx = context.Background()
		Expect(testDB.Truncate(ctx, "employees")).To(Succeed())
		repo = postgres.NewEmployeeRepository(testDB.Pool)
	})

	It("returns zeroes for an empty table", func() {
		dash, err := repo.Dashboard(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(dash.Total).To(BeZero())
		Expect(dash.AverageSalary).To(BeZero())
		Expect(dash.Departments).To(BeEmpty())
		Expect(dash.RecentHires).To(BeEmpty())
	})

	It("rejects a duplicate email", func() {
		add("ada", employee.Engineering, 100, day(2025, 1, 2))
		err := repo.Create(ctx, &employee.Employee{
			Name: "ada again", Email: "ada@x.com", Department: employee.Sales, Salary: 1, HireDate: day(2025, 1, 3),
		})
		Expect(err).To(MatchError(employee.ErrDuplicateEmail))
	})

	It("computes the dashboard aggregates", func() {
		add("ada", employee.Engineering, 100000, day(2025, 1, 10))
		add("grace", employee.Engineering, 120000, day(2025, 1, 20))
		add("linus", employee.Sales, 50000.50, day(2025, 3, 5))

		dash, err := repo.Dashboard(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(dash.Total).To(Equal(3))
		Expect(dash.AverageSalary).To(BeNumerically("~", 90000.17, 0.001))
		Expect(dash.Departments).To(Equal([]employee.DepartmentCount{
			{Department: employee.Engineering, Count: 2},
			{Department: employee.Sales, Count: 1},
		}))
		Expect(dash.HireTimeline).To(HaveLen(2))
		Expect(dash.HireTimeline[0].Month.Format("2006-01")).To(Equal("2025-01"))
		Expect(dash.HireTimeline[0].Hires).To(Equal(2))
		Expect(dash.HireTimeline[1].Month.Format("2006-01")).To(Equal("2025-03"))
		Expect(dash.RecentHires[0].Name).To(Equal("linus"))
	})

	It("caps recent hires", func() {
		for i := range 12 {
			add(fmt.Sprintf("e%02d", i), employee.HR, 1000, day(2025, 1, i+1))
		}

		dash, err := repo.Dashboard(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(dash.RecentHires).To(HaveLen(employee.RecentHiresLimit))
		Expect(dash.RecentHires[0].Name).To(Equal("e11"))

		all, err := repo.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(12))
	})
})
