// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/EcoBuddy/pkg/logging"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/backend"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/cache"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/diffview"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/smells"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/telemetry"
)

// Availability reports whether the backend is reachable. health.Monitor
// satisfies it.
type Availability interface {
	Up() bool
}

// Controller runs refactor sessions, one at a time.
//
// # Description
//
// Start admits at most one live session. The backend call runs on its
// own goroutine; its result is delivered back under the controller
// mutex and checked against the current session id, so a response
// arriving after the session was replaced or torn down is dropped
// without side effects. Commit and Discard act only on a session in
// AwaitingReview.
//
// # Thread Safety
//
// Safe for concurrent use.
type Controller struct {
	workspaceRoot string

	backend backend.Service
	cache   *cache.Cache
	tracker *diffview.Tracker
	avail   Availability
	metrics *telemetry.Metrics
	logger  *logging.Logger

	// runCtx backs the request goroutine; it belongs to the controller,
	// not the caller, so a handler-scoped cancellation cannot abort an
	// in-flight refactor. stop cancels it on Close.
	runCtx context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	current *session
	closed  bool
}

// NewController creates a session controller.
//
// # Inputs
//
//   - workspaceRoot: Source directory sent with refactor requests.
//     Empty means the workspace is not configured; Start will refuse.
//   - svc: Backend service.
//   - c: File record cache used for smell resolution and invalidation.
//   - tracker: Diff pair tracker.
//   - avail: Backend availability source.
//   - metrics: Telemetry sink.
//   - logger: Logger; nil falls back to the default logger.
func NewController(workspaceRoot string, svc backend.Service, c *cache.Cache,
	tracker *diffview.Tracker, avail Availability, metrics *telemetry.Metrics,
	logger *logging.Logger) *Controller {

	if logger == nil {
		logger = logging.Default()
	}
	runCtx, stop := context.WithCancel(context.Background())
	return &Controller{
		workspaceRoot: workspaceRoot,
		backend:       svc,
		cache:         c,
		tracker:       tracker,
		avail:         avail,
		metrics:       metrics,
		logger:        logger,
		runCtx:        runCtx,
		stop:          stop,
	}
}

// Close shuts the controller down.
//
// # Description
//
// Refuses further Starts, cancels the in-flight backend call if any,
// and waits for the request goroutine to finish. Responses arriving
// after Close are dropped, so once Close returns it is safe to close
// the stores the controller's collaborators write to.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.wg.Wait()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.stop()
	c.wg.Wait()
}

// Snapshot returns the current session view. An Idle snapshot is
// returned when no session exists or the last one reached a terminal
// state and the controller is ready for a new Start.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return Snapshot{State: Idle, StateName: Idle.String()}
	}
	return c.current.snapshot()
}

// LastOutcome returns the snapshot of the most recent session even
// after it terminated, for status projection of Failed.
func (c *Controller) LastOutcome() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return Snapshot{}, false
	}
	return c.current.snapshot(), true
}

// Start begins a refactor session for the given smell.
//
// # Description
//
// Guards run in a fixed order under the mutex: an active session wins
// over everything (ErrSessionBusy), then backend availability, then
// workspace configuration, then smell resolution (a vanished smell is
// cache.ErrSmellNotFound), then target freshness. Passing all guards
// atomically transitions to Requesting and dispatches exactly one
// backend call; there is no hidden retry.
//
// ctx scopes only the synchronous guard checks. The backend call runs
// on the controller's own context: the session outlives the HTTP
// request that started it, so cancelling the caller's context must not
// fail the refactor mid-flight.
//
// # Outputs
//
//   - string: The new session id.
//   - error: The first failing guard's sentinel, or a fingerprint
//     read failure.
func (c *Controller) Start(ctx context.Context, smellID string, mode Mode) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrControllerClosed
	}
	if c.current != nil && !c.current.state.Terminal() {
		return "", fmt.Errorf("%w: session %s is %s",
			ErrSessionBusy, c.current.id, c.current.state)
	}
	if !c.avail.Up() {
		return "", ErrServerDown
	}
	if c.workspaceRoot == "" {
		return "", ErrWorkspaceNotConfigured
	}

	path, smell, err := c.cache.BySmellID(smellID)
	if err != nil {
		return "", err
	}

	live, err := cache.FingerprintFile(c.resolve(path))
	if err != nil {
		return "", fmt.Errorf("fingerprint target %s: %w", path, err)
	}
	if c.cache.CheckFreshness(ctx, path, live) != cache.Fresh {
		return "", fmt.Errorf("%w: %s", ErrStaleTarget, path)
	}

	s := &session{
		id:                  uuid.NewString(),
		mode:                mode,
		smellID:             smellID,
		targetPath:          path,
		capturedFingerprint: live,
		state:               Requesting,
		createdAt:           time.Now(),
	}
	c.current = s

	c.logger.Info("refactor session started",
		"session_id", s.id, "smell_id", smellID, "path", path, "mode", mode.String())

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.request(c.runCtx, s.id, mode, *smell)
	}()

	return s.id, nil
}

// request performs the single backend call and delivers the outcome.
func (c *Controller) request(ctx context.Context, sessionID string, mode Mode, smell smells.Smell) {
	start := time.Now()

	var (
		data *backend.RefactoredData
		err  error
	)
	if mode == ModeAll {
		data, err = c.backend.RefactorAll(ctx, c.workspaceRoot, smell)
	} else {
		data, err = c.backend.Refactor(ctx, c.workspaceRoot, smell)
	}

	if c.metrics != nil {
		c.metrics.ObserveRefactor(time.Since(start))
	}

	c.deliverResult(ctx, sessionID, data, err)
}

// deliverResult applies a backend response to the session that asked
// for it.
//
// # Description
//
// Re-acquires the mutex and verifies the response still belongs to the
// current session in Requesting state. Anything else — a newer session,
// a discarded one, a torn-down controller — means the response is
// stale and is dropped without touching any state.
func (c *Controller) deliverResult(ctx context.Context, sessionID string, data *backend.RefactoredData, reqErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.current
	if c.closed || s == nil || s.id != sessionID || s.state != Requesting {
		c.logger.Debug("dropping stale backend response", "session_id", sessionID)
		return
	}

	if reqErr != nil {
		s.state = Failed
		s.err = reqErr
		if c.metrics != nil {
			c.metrics.SessionFinished(telemetry.OutcomeFailed)
		}
		c.logger.Warn("refactor request failed",
			"session_id", s.id, "error", reqErr.Error())
		return
	}

	s.result = data

	for _, pair := range data.Pairs() {
		err := c.tracker.Open(ctx, diffview.DiffPair{
			SessionID:      s.id,
			OriginalPath:   pair.Original,
			RefactoredPath: pair.Refactored,
			TempDir:        data.TempDir,
		})
		if err != nil {
			s.state = Failed
			s.err = err
			c.cleanupLocked(ctx, s)
			if c.metrics != nil {
				c.metrics.SessionFinished(telemetry.OutcomeFailed)
			}
			c.logger.Error("failed to open review diffs",
				"session_id", s.id, "error", err.Error())
			return
		}
	}

	s.state = AwaitingReview
	c.logger.Info("refactor ready for review",
		"session_id", s.id,
		"affected_files", len(data.AffectedFiles),
		"energy_saved", data.EnergySaved)
}

// Discard rejects the proposed changes.
//
// # Description
//
// Valid only in AwaitingReview. Closes the diffs, deletes the backend
// temp directory, and terminates the session as Discarded. File
// records are untouched: the smells are still real.
func (c *Controller) Discard(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.current
	if s == nil || s.state != AwaitingReview {
		return ErrNoReviewableSession
	}

	s.state = Discarded
	c.cleanupLocked(ctx, s)
	if c.metrics != nil {
		c.metrics.SessionFinished(telemetry.OutcomeDiscarded)
	}

	c.logger.Info("refactor discarded", "session_id", s.id)
	return nil
}

// cleanupLocked closes the session's diffs and removes its temp dir.
// Best-effort; called with the mutex held.
func (c *Controller) cleanupLocked(ctx context.Context, s *session) {
	if err := c.tracker.CloseSession(ctx, s.id); err != nil {
		c.logger.Warn("failed to close session diffs",
			"session_id", s.id, "error", err.Error())
	}
	if s.result != nil && s.result.TempDir != "" {
		removeTempDir(s.result.TempDir, c.logger)
	}
}

// resolve maps a workspace-relative path to an absolute one.
func (c *Controller) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.workspaceRoot, path)
}
