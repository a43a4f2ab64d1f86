// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EcoBuddy/pkg/retry"
)

// fakeProber scripts probe outcomes.
type fakeProber struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (f *fakeProber) Health(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return nil
	}
	err := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return err
}

func fastConfig() Config {
	return Config{
		Interval: 5 * time.Millisecond,
		Backoff: retry.Policy{
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
			Multiplier: 2,
		},
	}
}

// transitionRecorder collects observer notifications.
type transitionRecorder struct {
	mu     sync.Mutex
	states []bool
}

func (r *transitionRecorder) observe(up bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, up)
}

func (r *transitionRecorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.states))
	copy(out, r.states)
	return out
}

// TestMonitorNotifiesTransitions verifies observers hear down and
// recovery exactly once each, not every poll.
func TestMonitorNotifiesTransitions(t *testing.T) {
	probeErr := errors.New("connection refused")
	prober := &fakeProber{results: []error{nil, probeErr, probeErr, nil}}
	monitor := NewMonitor(fastConfig(), prober, nil)

	rec := &transitionRecorder{}
	monitor.Subscribe(rec.observe)

	monitor.Start(context.Background())
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		states := rec.snapshot()
		return len(states) >= 3
	}, time.Second, time.Millisecond)

	states := rec.snapshot()[:3]
	assert.Equal(t, []bool{true, false, true}, states)
	assert.True(t, monitor.Up())
}

// TestMonitorServerDownClears verifies ServerDown is not sticky: the
// next healthy probe flips availability back.
func TestMonitorServerDownClears(t *testing.T) {
	probeErr := errors.New("dial tcp: refused")
	prober := &fakeProber{results: []error{probeErr, nil}}
	monitor := NewMonitor(fastConfig(), prober, nil)

	monitor.Start(context.Background())
	defer monitor.Stop()

	require.Eventually(t, monitor.Up, time.Second, time.Millisecond)
}

// TestSubscribeReplaysCurrentState verifies a late subscriber learns
// the present availability immediately.
func TestSubscribeReplaysCurrentState(t *testing.T) {
	prober := &fakeProber{}
	monitor := NewMonitor(fastConfig(), prober, nil)

	monitor.Start(context.Background())
	defer monitor.Stop()

	require.Eventually(t, monitor.Up, time.Second, time.Millisecond)

	rec := &transitionRecorder{}
	monitor.Subscribe(rec.observe)

	states := rec.snapshot()
	require.Len(t, states, 1)
	assert.True(t, states[0])
}

// TestStopHaltsPolling verifies Stop terminates the loop.
func TestStopHaltsPolling(t *testing.T) {
	prober := &fakeProber{}
	monitor := NewMonitor(fastConfig(), prober, nil)

	monitor.Start(context.Background())
	monitor.Stop()

	prober.mu.Lock()
	after := prober.calls
	prober.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	prober.mu.Lock()
	final := prober.calls
	prober.mu.Unlock()
	assert.Equal(t, after, final)

	// Stop twice is safe.
	monitor.Stop()
}
