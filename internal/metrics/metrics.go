// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics exposes Prometheus counters for authentication outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation labels.
const (
	OpRegister       = "register"
	OpLogin          = "login"
	OpForgotPassword = "forgot_password"
	OpResetPassword  = "reset_password"
	OpAuthenticate   = "authenticate"
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeNotFound = "not_found"
	OutcomeDenied   = "denied"
	OutcomeError    = "error"
)

// Metrics holds the collectors of one process. A nil *Metrics is a no-op.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	emails     *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry
// together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_operations_total",
				Help: "Total number of authentication operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		emails: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_reset_emails_total",
				Help: "Total number of password reset emails by delivery status",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.operations,
		m.emails,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe counts one operation with the given outcome.
func (m *Metrics) Observe(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveEmail counts one reset email delivery attempt.
func (m *Metrics) ObserveEmail(delivered bool) {
	if m == nil {
		return
	}
	status := "sent"
	if !delivered {
		status = "failed"
	}
	m.emails.WithLabelValues(status).Inc()
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
