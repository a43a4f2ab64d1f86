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
	"os"
	"path/filepath"

	"github.com/AleutianAI/EcoBuddy/pkg/logging"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/cache"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/telemetry"
)

// stagedFile is one file prepared for the swap: its destination, the
// refactored content to write, and the original content to restore on
// rollback.
type stagedFile struct {
	path       string // workspace-relative, as the backend reported it
	dest       string // absolute destination
	refactored []byte
	original   []byte
}

// Commit applies the reviewed changes to the workspace.
//
// # Description
//
// Valid only in AwaitingReview. The target file's live fingerprint is
// compared against the one captured at request time; a mismatch means
// the user (or something else) edited the file during review, and the
// commit fails without applying anything.
//
// The apply is staged-then-swap: every refactored temp file and every
// current original is read into memory before the first byte is
// written. Each target is then replaced via a sibling temp file and
// rename. If a swap fails partway, the files already swapped are
// restored from the in-memory originals and the session fails.
//
// On success every touched file's record is marked Outdated, the energy
// estimate is accumulated, diffs are closed, and the temp directory is
// removed.
func (c *Controller) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.current
	if s == nil || s.state != AwaitingReview {
		return ErrNoReviewableSession
	}

	s.state = Committing

	live, err := cache.FingerprintFile(c.resolve(s.targetPath))
	if err != nil {
		return c.failCommitLocked(ctx, s, fmt.Errorf("fingerprint target %s: %w", s.targetPath, err))
	}
	if live != s.capturedFingerprint {
		return c.failCommitLocked(ctx, s,
			fmt.Errorf("%w: %s", ErrExternalModificationConflict, s.targetPath))
	}

	staged, err := c.stageLocked(s)
	if err != nil {
		return c.failCommitLocked(ctx, s, err)
	}

	if err := swapAll(staged, c.logger); err != nil {
		return c.failCommitLocked(ctx, s, err)
	}

	for _, f := range staged {
		c.cache.MarkOutdated(ctx, f.path)
	}

	if c.metrics != nil {
		c.metrics.AddEnergySaved(s.result.EnergySaved)
		c.metrics.SessionFinished(telemetry.OutcomeCommitted)
	}

	s.state = Committed
	c.cleanupLocked(ctx, s)

	c.logger.Info("refactor committed",
		"session_id", s.id,
		"files", len(staged),
		"energy_saved", s.result.EnergySaved)
	return nil
}

// stageLocked reads every refactored file and every current original
// into memory. Nothing in the workspace changes here.
func (c *Controller) stageLocked(s *session) ([]stagedFile, error) {
	pairs := s.result.Pairs()
	staged := make([]stagedFile, 0, len(pairs))

	for _, pair := range pairs {
		refactored, err := os.ReadFile(pair.Refactored)
		if err != nil {
			return nil, fmt.Errorf("stage refactored %s: %w", pair.Refactored, err)
		}
		dest := c.resolve(pair.Original)
		original, err := os.ReadFile(dest)
		if err != nil {
			return nil, fmt.Errorf("stage original %s: %w", dest, err)
		}
		staged = append(staged, stagedFile{
			path:       pair.Original,
			dest:       dest,
			refactored: refactored,
			original:   original,
		})
	}
	return staged, nil
}

// swapAll replaces each staged file's destination, rolling back the
// ones already swapped if any replacement fails.
func swapAll(staged []stagedFile, logger *logging.Logger) error {
	for i, f := range staged {
		if err := replaceFile(f.dest, f.refactored); err != nil {
			for j := i - 1; j >= 0; j-- {
				if restoreErr := replaceFile(staged[j].dest, staged[j].original); restoreErr != nil {
					logger.Error("rollback failed, file left refactored",
						"path", staged[j].path, "error", restoreErr.Error())
				}
			}
			return fmt.Errorf("apply %s: %w", f.path, err)
		}
	}
	return nil
}

// replaceFile writes content to a sibling temp file and renames it over
// dest, preserving the destination's mode when it exists.
func replaceFile(dest string, content []byte) error {
	mode := os.FileMode(0640)
	if info, err := os.Stat(dest); err == nil {
		mode = info.Mode()
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".eco-*")
	if err != nil {
		return fmt.Errorf("create sibling temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write sibling temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close sibling temp: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod sibling temp: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// failCommitLocked terminates the session as Failed and cleans up.
func (c *Controller) failCommitLocked(ctx context.Context, s *session, err error) error {
	s.state = Failed
	s.err = err
	c.cleanupLocked(ctx, s)
	if c.metrics != nil {
		c.metrics.SessionFinished(telemetry.OutcomeFailed)
	}
	c.logger.Warn("commit failed", "session_id", s.id, "error", err.Error())
	return err
}

// removeTempDir deletes the backend temp directory, logging failures.
func removeTempDir(dir string, logger *logging.Logger) {
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("failed to remove temp dir", "dir", dir, "error", err.Error())
	}
}
