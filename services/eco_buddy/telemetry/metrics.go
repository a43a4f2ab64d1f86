// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry exposes Prometheus metrics for detection and
// refactoring activity.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ecobuddy"

// Session outcome labels.
const (
	OutcomeCommitted = "committed"
	OutcomeDiscarded = "discarded"
	OutcomeFailed    = "failed"
)

// Metrics holds the collectors for the service.
//
// # Thread Safety
//
// Safe for concurrent use; Prometheus collectors are synchronized.
type Metrics struct {
	energySaved       prometheus.Counter
	sessionsByOutcome *prometheus.CounterVec
	smellsDetected    *prometheus.CounterVec
	detectionDuration prometheus.Histogram
	refactorDuration  prometheus.Histogram
}

// NewMetrics registers the collectors with the given registerer.
//
// # Inputs
//
//   - reg: Target registry. Tests pass prometheus.NewRegistry(); main
//     passes prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		energySaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "energy_saved_joules_total",
			Help:      "Estimated energy saved by committed refactorings, in joules.",
		}),
		sessionsByOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refactor_sessions_total",
			Help:      "Refactor sessions by terminal outcome.",
		}, []string{"outcome"}),
		smellsDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "smells_detected_total",
			Help:      "Smells reported by the backend, by rule.",
		}, []string{"rule"}),
		detectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_duration_seconds",
			Help:      "Wall time of backend detection calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		refactorDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refactor_duration_seconds",
			Help:      "Wall time of backend refactor calls.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

// AddEnergySaved accumulates the backend's energy estimate for a
// committed session. Negative values are ignored.
func (m *Metrics) AddEnergySaved(joules float64) {
	if joules < 0 {
		return
	}
	m.energySaved.Add(joules)
}

// SessionFinished records a session reaching a terminal state.
func (m *Metrics) SessionFinished(outcome string) {
	m.sessionsByOutcome.WithLabelValues(outcome).Inc()
}

// SmellDetected counts one reported smell by rule symbol.
func (m *Metrics) SmellDetected(rule string) {
	m.smellsDetected.WithLabelValues(rule).Inc()
}

// ObserveDetection records the duration of a detection call.
func (m *Metrics) ObserveDetection(d time.Duration) {
	m.detectionDuration.Observe(d.Seconds())
}

// ObserveRefactor records the duration of a refactor call.
func (m *Metrics) ObserveRefactor(d time.Duration) {
	m.refactorDuration.Observe(d.Seconds())
}
