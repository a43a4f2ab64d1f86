// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retry provides a small reusable retry policy with exponential
// backoff and jitter.
//
// The policy is decoupled from what is being retried: the health poller
// uses it to space out failed liveness probes, and the log-stream client
// uses it to pace websocket reconnection attempts. Both share the same
// Policy type instead of hand-rolling their own backoff math.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrAttemptsExhausted is returned by Do when every attempt failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Policy describes a bounded exponential backoff schedule.
//
// # Thread Safety
//
// Policy is immutable after creation and safe to share.
type Policy struct {
	// MaxAttempts is the total number of attempts (first try included).
	// Zero or negative means a single attempt.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration

	// MaxDelay caps the growing delay. Zero means no cap.
	MaxDelay time.Duration

	// Multiplier is the growth factor between attempts. Values <= 1
	// produce a constant delay.
	Multiplier float64

	// Jitter randomizes each delay by a factor in [1-Jitter, 1+Jitter].
	// Zero disables jitter.
	Jitter float64
}

// DefaultPolicy returns the schedule used by the reconnection paths:
// 5 attempts starting at 500ms, doubling, capped at 10s, ±20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// Delay returns the backoff delay to apply after the given failed
// attempt (0-based). The first attempt has no preceding delay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return p.applyJitter(p.BaseDelay)
	}

	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			d = float64(p.MaxDelay)
			break
		}
	}
	return p.applyJitter(time.Duration(d))
}

func (p Policy) applyJitter(d time.Duration) time.Duration {
	if p.Jitter <= 0 {
		return d
	}
	factor := 1.0 + (rand.Float64()*2-1)*p.Jitter
	return time.Duration(float64(d) * factor)
}

// Do runs fn until it succeeds, the policy is exhausted, or ctx is done.
//
// # Description
//
// The first attempt runs immediately. Each subsequent attempt waits for
// the policy's delay, honoring context cancellation during the wait.
// The last attempt's error is wrapped into the returned error.
//
// # Inputs
//
//   - ctx: Context for cancellation. Checked between attempts.
//   - fn: The operation. A nil return stops retrying.
//
// # Outputs
//
//   - error: nil on success; ctx.Err() on cancellation; otherwise
//     ErrAttemptsExhausted wrapping the final failure.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, p.Delay(attempt-1)); err != nil {
				return err
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempts, lastErr)
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
