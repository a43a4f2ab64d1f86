// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package eco_buddy wires the detection and refactoring components
// behind the editor-facing HTTP API.
package eco_buddy

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/EcoBuddy/pkg/logging"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/backend"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/cache"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/config"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/diffview"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/session"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/smells"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/telemetry"
)

// Availability reports backend reachability to the handlers.
type Availability interface {
	Up() bool
}

// Service holds the wired components behind the HTTP surface.
type Service struct {
	config  config.Config
	enabled []smells.RuleKind

	cache      *cache.Cache
	backend    backend.Service
	controller *session.Controller
	tracker    *diffview.Tracker
	avail      Availability
	metrics    *telemetry.Metrics
	logger     *logging.Logger
}

// NewService assembles the service from its collaborators.
//
// # Inputs
//
//   - cfg: Validated workspace configuration.
//   - c: File record cache, already loaded.
//   - svc: Backend client.
//   - controller: Session controller.
//   - tracker: Diff pair tracker.
//   - avail: Backend availability source.
//   - metrics: Telemetry sink; may be nil in tests.
//   - logger: Logger; nil falls back to the default logger.
func NewService(cfg config.Config, c *cache.Cache, svc backend.Service,
	controller *session.Controller, tracker *diffview.Tracker,
	avail Availability, metrics *telemetry.Metrics, logger *logging.Logger) (*Service, error) {

	enabled, err := cfg.EnabledRuleKinds()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Service{
		config:     cfg,
		enabled:    enabled,
		cache:      c,
		backend:    svc,
		controller: controller,
		tracker:    tracker,
		avail:      avail,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// Detect runs detection for one file and refreshes its cache record.
//
// # Outputs
//
//   - *cache.FileRecord: The new record.
//   - error: Backend or filesystem failure; the old record survives.
func (s *Service) Detect(ctx context.Context, path string) (*cache.FileRecord, error) {
	path = s.canonical(path)
	abs := s.resolve(path)
	fingerprint, err := cache.FingerprintFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	start := time.Now()
	found, err := s.backend.DetectSmells(ctx, abs, s.enabled)
	if s.metrics != nil {
		s.metrics.ObserveDetection(time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	for i := range found {
		if err := smells.Normalize(&found[i], path); err != nil {
			return nil, fmt.Errorf("normalize smell from backend: %w", err)
		}
		if s.metrics != nil {
			s.metrics.SmellDetected(found[i].Rule.Symbol())
		}
	}

	if err := s.cache.Upsert(ctx, path, fingerprint, found); err != nil {
		return nil, err
	}

	s.logger.Info("detection finished", "path", path, "smells", len(found))
	return s.cache.Get(path)
}

func (s *Service) resolve(path string) string {
	if filepath.IsAbs(path) || s.config.WorkspaceRoot == "" {
		return path
	}
	return filepath.Join(s.config.WorkspaceRoot, path)
}

// canonical maps a caller-supplied path onto the cache's keying
// convention: workspace-relative for files under the workspace root,
// unchanged otherwise. Detection, queries, and the save watcher must
// agree on one form or freshness updates would miss the record.
func (s *Service) canonical(path string) string {
	root := s.config.WorkspaceRoot
	if root == "" || !filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}
