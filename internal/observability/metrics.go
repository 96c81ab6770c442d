// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Staffboard Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Login attempt results.
const (
	LoginSuccess     = "success"
	LoginInvalid     = "invalid_credentials"
	LoginRateLimited = "rate_limited"
	LoginError       = "error"
)

// Registration results.
const (
	RegistrationCreated   = "created"
	RegistrationDuplicate = "duplicate"
	RegistrationInvalid   = "invalid"
	RegistrationError     = "error"
)

// Metrics contains the staffboard Prometheus collectors.
type Metrics struct {
	LoginAttempts   *prometheus.CounterVec
	Registrations   *prometheus.CounterVec
	AccessDenied    *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the staffboard metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staffboard_login_attempts_total",
				Help: "Total number of login attempts by result",
			},
			[]string{"result"},
		),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staffboard_registrations_total",
				Help: "Total number of registration attempts by result",
			},
			[]string{"result"},
		),
		AccessDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staffboard_access_denied_total",
				Help: "Total number of denied view requests by reason",
			},
			[]string{"reason"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staffboard_http_requests_total",
				Help: "Total number of HTTP API requests by route and status",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "staffboard_http_request_duration_seconds",
				Help:    "HTTP API request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(
		m.LoginAttempts,
		m.Registrations,
		m.AccessDenied,
		m.HTTPRequests,
		m.RequestDuration,
	)
	return m
}

// RecordLogin counts one login attempt.
func (m *Metrics) RecordLogin(result string) {
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// RecordRegistration counts one registration attempt.
func (m *Metrics) RecordRegistration(result string) {
	m.Registrations.WithLabelValues(result).Inc()
}

// RecordDenial counts a denied view. Its signature matches access.DenialHook.
func (m *Metrics) RecordDenial(_, reason string) {
	m.AccessDenied.WithLabelValues(reason).Inc()
}

// RecordRequest counts a completed HTTP request. route is the chi pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) RecordRequest(route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
