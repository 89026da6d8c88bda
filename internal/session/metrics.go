// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ActiveSessions tracks the number of registered sessions.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "novamush_sessions_active",
			Help: "Number of currently connected sessions.",
		},
	)

	// Logins counts completed logins by account kind.
	Logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novamush_logins_total",
			Help: "Total completed logins by account kind.",
		},
		[]string{"kind"},
	)
)

// RegisterMetrics registers session metrics with the given registry.
// Call once at startup.
func RegisterMetrics(reg prometheus.Registerer) error {
	if err := reg.Register(ActiveSessions); err != nil {
		return err
	}
	return reg.Register(Logins)
}
