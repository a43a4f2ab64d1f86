// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session implements the single-flight refactor session
// controller: request, review, commit or discard.
package session

import "errors"

// Sentinel errors for session operations.
var (
	// ErrSessionBusy is returned when a refactor is already in flight or
	// awaiting review. At most one session exists at a time.
	ErrSessionBusy = errors.New("a refactor session is already active")

	// ErrServerDown is returned when the backend is unavailable at
	// request time. No request is sent.
	ErrServerDown = errors.New("refactoring server is down")

	// ErrWorkspaceNotConfigured is returned when no workspace root is
	// set; refactor requests need a source directory to send.
	ErrWorkspaceNotConfigured = errors.New("workspace root not configured")

	// ErrStaleTarget is returned when the target file changed since its
	// last detection. Re-detection is required first.
	ErrStaleTarget = errors.New("target file is outdated, re-run detection")

	// ErrExternalModificationConflict is returned by Commit when the
	// target file changed between request and commit. Nothing is applied.
	ErrExternalModificationConflict = errors.New("file modified externally during review")

	// ErrNoReviewableSession is returned by Commit/Discard when no
	// session is awaiting review.
	ErrNoReviewableSession = errors.New("no session awaiting review")

	// ErrControllerClosed is returned by Start after Close; the
	// controller refuses new sessions during shutdown.
	ErrControllerClosed = errors.New("session controller is shut down")
)
