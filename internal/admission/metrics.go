// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package admission

import "github.com/prometheus/client_golang/prometheus"

// Denials is the counter for admission denials by reason.
// Use RegisterMetrics to register this with a Prometheus registry.
var Denials = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hermod_admission_denials_total",
		Help: "Total number of admission denials",
	},
	[]string{"plugin", "reason"},
)

// Usage is the counter for recorded successful invocations.
var Usage = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hermod_plugin_invocations_total",
		Help: "Total number of recorded plugin invocations",
	},
	[]string{"plugin"},
)

// Errors is the counter for recorded plugin errors.
var Errors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hermod_plugin_errors_total",
		Help: "Total number of recorded plugin errors",
	},
	[]string{"plugin"},
)

// RegisterMetrics registers admission metrics with the given registry.
// Panics if registration fails, following prometheus convention.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Denials)
	reg.MustRegister(Usage)
	reg.MustRegister(Errors)
}

// RecordDenial increments the denial counter.
func RecordDenial(plugin string, reason Reason) {
	Denials.WithLabelValues(plugin, string(reason)).Inc()
}

func recordUsage(plugin string) {
	Usage.WithLabelValues(plugin).Inc()
}

func recordError(plugin string, _ error) {
	Errors.WithLabelValues(plugin).Inc()
}
