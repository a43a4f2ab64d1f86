// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watcher flips cache freshness when tracked files change on
// disk.
//
// The editor does not report saves to us; the filesystem does. Every
// write to a file with a cache record triggers a fingerprint check, so
// stale smells are flagged without waiting for the next detection.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/EcoBuddy/pkg/logging"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/cache"
)

// Watcher observes the workspace tree and re-checks freshness of
// tracked files on change.
//
// # Thread Safety
//
// Start/Stop are not safe to call concurrently with each other; the
// event loop itself is a single goroutine.
type Watcher struct {
	root   string
	cache  *cache.Cache
	logger *logging.Logger

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a watcher over the workspace root.
func New(root string, c *cache.Cache, logger *logging.Logger) (*Watcher, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Watcher{
		root:   root,
		cache:  c,
		logger: logger,
	}, nil
}

// Start registers watches on the workspace tree and launches the event
// loop. Directories created later are added as they appear.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	w.fsw = fsw

	if err := w.watchTree(w.root); err != nil {
		fsw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.run(ctx)
	return nil
}

// Stop terminates the event loop and releases the watches.
func (w *Watcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.fsw.Close()
	w.cancel = nil
}

// watchTree adds watches for dir and every subdirectory, skipping
// hidden directories.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); path != dir && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fs watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
		return
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watchTree(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory",
					"dir", event.Name, "error", err.Error())
			}
			return
		}
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}

	// Only files with a record matter; everything else is noise.
	if _, err := w.cache.Get(rel); err != nil {
		return
	}

	live, err := cache.FingerprintFile(event.Name)
	if err != nil {
		w.logger.Warn("failed to fingerprint changed file",
			"path", rel, "error", err.Error())
		return
	}

	if w.cache.CheckFreshness(ctx, rel, live) == cache.Outdated {
		w.logger.Debug("tracked file went stale", "path", rel)
	}
}
