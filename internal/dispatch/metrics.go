// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status constants for dispatch metrics.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusDenied    = "denied"
	StatusTimeout   = "timeout"
	StatusIgnored   = "ignored"
	StatusPassive   = "passive"
)

// Dispatches is the counter for dispatch outcomes.
// Use RegisterMetrics to register this with a Prometheus registry.
var Dispatches = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hermod_dispatches_total",
		Help: "Total number of event dispatches by outcome",
	},
	[]string{"status"},
)

// CommandDuration is the histogram for handler execution duration.
var CommandDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "hermod_command_duration_seconds",
		Help:    "Command handler execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"command"},
)

// SpamDropped is the counter for messages dropped by the spam guard.
var SpamDropped = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "hermod_spamguard_dropped_total",
		Help: "Total number of messages dropped by the spam guard",
	},
)

// RegisterMetrics registers dispatch metrics with the given registry.
// Panics if registration fails, following prometheus convention.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Dispatches)
	reg.MustRegister(CommandDuration)
	reg.MustRegister(SpamDropped)
}

func recordOutcome(o Outcome) {
	Dispatches.WithLabelValues(string(o)).Inc()
}

func recordDuration(command string, d time.Duration) {
	CommandDuration.WithLabelValues(command).Observe(d.Seconds())
}
