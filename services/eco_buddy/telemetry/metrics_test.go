// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEnergySavedAccumulates verifies commit estimates sum and negative
// values are dropped.
func TestEnergySavedAccumulates(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.AddEnergySaved(0.5)
	m.AddEnergySaved(0.25)
	m.AddEnergySaved(-1)

	assert.InDelta(t, 0.75, testutil.ToFloat64(m.energySaved), 1e-9)
}

// TestSessionOutcomes verifies per-outcome counting.
func TestSessionOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SessionFinished(OutcomeCommitted)
	m.SessionFinished(OutcomeCommitted)
	m.SessionFinished(OutcomeDiscarded)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsByOutcome.WithLabelValues(OutcomeCommitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsByOutcome.WithLabelValues(OutcomeDiscarded)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sessionsByOutcome.WithLabelValues(OutcomeFailed)))
}

// TestCollectorsRegister verifies all collectors land in the registry
// under the expected names.
func TestCollectorsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SmellDetected("long-lambda-expression")
	m.ObserveDetection(120 * time.Millisecond)
	m.ObserveRefactor(2 * time.Second)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, fam := range families {
		names = append(names, fam.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "ecobuddy_smells_detected_total")
	assert.Contains(t, joined, "ecobuddy_detection_duration_seconds")
	assert.Contains(t, joined, "ecobuddy_refactor_duration_seconds")
}
