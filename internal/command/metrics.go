// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package command

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Terminal pipeline outcomes recorded per dispatch.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusNotFound    = "not_found"
	StatusDenied      = "denied"
	StatusRateLimited = "rate_limited"
	StatusAborted     = "aborted"
	StatusHookError   = "hook_error"
)

var (
	// CommandDispatches counts dispatches by command, caller scope,
	// and terminal status. Unresolved input is recorded under the
	// literal command "unknown".
	CommandDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novamush_command_dispatches_total",
			Help: "Total command dispatches by command, scope, and status.",
		},
		[]string{"command", "scope", "status"},
	)

	// CommandDuration observes full pipeline latency per command.
	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "novamush_command_duration_seconds",
			Help:    "Command pipeline duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
)

// RegisterMetrics registers command metrics with the given registry.
// Call once at startup.
func RegisterMetrics(reg prometheus.Registerer) error {
	if err := reg.Register(CommandDispatches); err != nil {
		return err
	}
	return reg.Register(CommandDuration)
}

// RecordDispatch records a terminal pipeline outcome.
func RecordDispatch(cmd, scope, status string) {
	CommandDispatches.WithLabelValues(cmd, scope, status).Inc()
}

// RecordDuration records full pipeline latency.
func RecordDuration(cmd string, seconds float64) {
	CommandDuration.WithLabelValues(cmd).Observe(seconds)
}
