// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package health monitors backend availability.
//
// The monitor is an explicit object with observer registration, not a
// process-wide broadcaster: components that care about availability
// subscribe to the one monitor instance they are wired to.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/AleutianAI/EcoBuddy/pkg/logging"
	"github.com/AleutianAI/EcoBuddy/pkg/retry"
)

// Prober is the probe surface the monitor polls. backend.Client
// satisfies it.
type Prober interface {
	Health(ctx context.Context) error
}

// Config holds configuration for the monitor.
type Config struct {
	// Interval is the poll cadence while the backend is healthy.
	Interval time.Duration

	// Backoff paces re-probes after a failure. Successive failures wait
	// longer, capped by the policy, until the backend answers again.
	Backoff retry.Policy
}

// DefaultConfig returns the production poll cadence.
func DefaultConfig() Config {
	return Config{
		Interval: 10 * time.Second,
		// Only the delay schedule is used; the monitor never gives up,
		// so MaxAttempts does not apply.
		Backoff: retry.Policy{
			BaseDelay:  2 * time.Second,
			MaxDelay:   30 * time.Second,
			Multiplier: 2,
			Jitter:     0.2,
		},
	}
}

// Observer receives availability transitions. Called from the monitor
// goroutine; implementations must not block.
type Observer func(up bool)

// Monitor polls the backend and fans availability transitions out to
// registered observers.
//
// # Description
//
// While healthy the monitor probes every Interval. On a failed probe it
// flips to down, notifies observers once, and re-probes on the backoff
// schedule; the first successful probe flips back to up and notifies
// again. Observers only hear transitions, never repeats.
//
// # Thread Safety
//
// Safe for concurrent use.
type Monitor struct {
	config Config
	prober Prober
	logger *logging.Logger

	mu        sync.RWMutex
	up        bool
	probed    bool
	observers []Observer

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor. It does not poll until Start.
func NewMonitor(config Config, prober Prober, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Monitor{
		config: config,
		prober: prober,
		logger: logger,
	}
}

// Subscribe registers an observer and immediately replays the current
// state to it so late subscribers do not miss the initial transition.
func (m *Monitor) Subscribe(obs Observer) {
	m.mu.Lock()
	m.observers = append(m.observers, obs)
	probed, up := m.probed, m.up
	m.mu.Unlock()

	if probed {
		obs(up)
	}
}

// Up reports the last observed availability. False before the first
// probe completes.
func (m *Monitor) Up() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.up
}

// Start launches the poll loop. The first probe runs immediately so the
// UI gets an answer without waiting a full interval.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		m.run(ctx)
	}()
}

// Stop terminates the poll loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) run(ctx context.Context) {
	failures := 0

	for {
		err := m.prober.Health(ctx)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			failures++
			m.setState(ctx, false, err)
		} else {
			failures = 0
			m.setState(ctx, true, nil)
		}

		var wait time.Duration
		if failures > 0 {
			wait = m.config.Backoff.Delay(failures - 1)
		} else {
			wait = m.config.Interval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// setState records the probe outcome and notifies observers on change.
func (m *Monitor) setState(ctx context.Context, up bool, cause error) {
	m.mu.Lock()
	changed := !m.probed || m.up != up
	m.probed = true
	m.up = up
	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	if !changed {
		return
	}

	if up {
		m.logger.Info("backend is healthy")
	} else {
		m.logger.Warn("backend is down", "error", cause.Error())
	}

	for _, obs := range observers {
		obs(up)
	}
}
