// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diffview tracks open diff-pair artifacts per refactor session.
//
// Every diff the editor opens on the session's behalf is registered
// here and persisted, so that crash recovery can find and clean up
// views and temp files a previous run left behind.
package diffview

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/EcoBuddy/pkg/logging"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/storage/badger"
)

// DiffPair is one open original/refactored comparison.
type DiffPair struct {
	// SessionID is the owning refactor session.
	SessionID string `json:"session_id"`

	// OriginalPath is the workspace file shown on the left.
	OriginalPath string `json:"original_path"`

	// RefactoredPath is the backend temp file shown on the right.
	RefactoredPath string `json:"refactored_path"`

	// TempDir is the backend temp directory the refactored file lives
	// in. Recorded so an orphan sweep can remove the whole directory.
	TempDir string `json:"temp_dir,omitempty"`
}

// EditorPort is the bridge to the host editor's diff UI.
//
// Close tolerance matters: the user may have closed a tab themselves,
// so CloseDiff on an already-closed pair must not error.
type EditorPort interface {
	OpenDiff(ctx context.Context, original, refactored string) error
	CloseDiff(ctx context.Context, original, refactored string) error
}

var pairPrefix = []byte("diffpair/")

func sessionPrefix(sessionID string) []byte {
	return []byte("diffpair/" + sessionID + "/")
}

func pairKey(sessionID string, n int) []byte {
	return []byte(fmt.Sprintf("diffpair/%s/%06d", sessionID, n))
}

// Tracker registers, closes, and sweeps diff pairs.
//
// # Thread Safety
//
// Safe for concurrent use, though in practice the single-flight session
// controller serializes access.
type Tracker struct {
	mu     sync.Mutex
	counts map[string]int // per-session pair counter for key ordering

	store  *badger.DB
	editor EditorPort
	logger *logging.Logger
}

// NewTracker creates a tracker over the workspace store and editor port.
func NewTracker(store *badger.DB, editor EditorPort, logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Tracker{
		counts: make(map[string]int),
		store:  store,
		editor: editor,
		logger: logger,
	}
}

// Open registers a diff pair, persists it, and opens the editor view.
//
// # Description
//
// The record is persisted before the view opens: if the process dies
// between the two, the sweep finds a record whose view never existed,
// and closing a non-open view is tolerated by contract.
func (t *Tracker) Open(ctx context.Context, pair DiffPair) error {
	t.mu.Lock()
	n := t.counts[pair.SessionID]
	t.counts[pair.SessionID] = n + 1
	t.mu.Unlock()

	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("marshal diff pair: %w", err)
	}

	err = t.store.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Set(pairKey(pair.SessionID, n), data)
	})
	if err != nil {
		return fmt.Errorf("persist diff pair: %w", err)
	}

	if err := t.editor.OpenDiff(ctx, pair.OriginalPath, pair.RefactoredPath); err != nil {
		return fmt.Errorf("open diff view: %w", err)
	}

	t.logger.Debug("diff pair opened",
		"session_id", pair.SessionID, "original", pair.OriginalPath)
	return nil
}

// Pairs returns the registered pairs for a session, in open order.
func (t *Tracker) Pairs(ctx context.Context, sessionID string) ([]DiffPair, error) {
	return t.loadPairs(ctx, sessionPrefix(sessionID))
}

// CloseSession closes every view of the session and drops its records.
//
// # Description
//
// Best-effort: a view the user already closed, or an editor bridge
// error, is logged and skipped — the records are deleted regardless so
// the session leaves no bookkeeping behind.
func (t *Tracker) CloseSession(ctx context.Context, sessionID string) error {
	pairs, err := t.loadPairs(ctx, sessionPrefix(sessionID))
	if err != nil {
		return err
	}

	for _, pair := range pairs {
		if err := t.editor.CloseDiff(ctx, pair.OriginalPath, pair.RefactoredPath); err != nil {
			t.logger.Warn("failed to close diff view",
				"session_id", sessionID, "original", pair.OriginalPath, "error", err.Error())
		}
	}

	t.mu.Lock()
	delete(t.counts, sessionID)
	t.mu.Unlock()

	return t.store.DeletePrefix(ctx, sessionPrefix(sessionID))
}

// SweepOrphans cleans up pairs persisted by a previous run.
//
// # Description
//
// Runs once at startup, before any new session starts. Closes whatever
// views may still exist, removes the recorded temp directories, and
// deletes all pair records. Failures on individual artifacts are logged
// and skipped; the sweep always finishes.
//
// # Outputs
//
//   - int: Number of orphaned pairs cleaned.
//   - error: Non-nil only if the store itself failed.
func (t *Tracker) SweepOrphans(ctx context.Context) (int, error) {
	pairs, err := t.loadPairs(ctx, pairPrefix)
	if err != nil {
		return 0, err
	}
	if len(pairs) == 0 {
		return 0, nil
	}

	tempDirs := make(map[string]struct{})
	for _, pair := range pairs {
		if err := t.editor.CloseDiff(ctx, pair.OriginalPath, pair.RefactoredPath); err != nil {
			t.logger.Warn("orphan sweep: close diff failed",
				"session_id", pair.SessionID, "error", err.Error())
		}
		if pair.TempDir != "" {
			tempDirs[pair.TempDir] = struct{}{}
		}
	}

	for dir := range tempDirs {
		if err := os.RemoveAll(dir); err != nil {
			t.logger.Warn("orphan sweep: remove temp dir failed",
				"dir", dir, "error", err.Error())
		}
	}

	if err := t.store.DeletePrefix(ctx, pairPrefix); err != nil {
		return 0, err
	}

	t.logger.Info("swept orphaned diff pairs", "count", len(pairs))
	return len(pairs), nil
}

func (t *Tracker) loadPairs(ctx context.Context, prefix []byte) ([]DiffPair, error) {
	var pairs []DiffPair
	err := t.store.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var pair DiffPair
				if err := json.Unmarshal(val, &pair); err != nil {
					t.logger.Warn("skipping corrupt diff pair record",
						"key", string(it.Item().Key()), "error", err.Error())
					return nil
				}
				pairs = append(pairs, pair)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}
