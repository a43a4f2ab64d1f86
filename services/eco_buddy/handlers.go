// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eco_buddy

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/backend"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/cache"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/diffview"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/session"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/status"
)

// errorPayload is the uniform error body: a human message and a stable
// machine code the editor extension switches on.
type errorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps sentinel errors to HTTP status and machine codes.
func writeError(c *gin.Context, err error) {
	var (
		httpStatus int
		code       string
	)

	switch {
	case errors.Is(err, session.ErrSessionBusy):
		httpStatus, code = http.StatusConflict, "session_busy"
	case errors.Is(err, session.ErrServerDown), errors.Is(err, backend.ErrUnreachable):
		httpStatus, code = http.StatusServiceUnavailable, "server_down"
	case errors.Is(err, session.ErrWorkspaceNotConfigured):
		httpStatus, code = http.StatusBadRequest, "workspace_not_configured"
	case errors.Is(err, session.ErrStaleTarget):
		httpStatus, code = http.StatusConflict, "stale_target"
	case errors.Is(err, session.ErrExternalModificationConflict):
		httpStatus, code = http.StatusConflict, "external_modification"
	case errors.Is(err, session.ErrNoReviewableSession):
		httpStatus, code = http.StatusConflict, "no_reviewable_session"
	case errors.Is(err, cache.ErrSmellNotFound):
		httpStatus, code = http.StatusNotFound, "smell_not_found"
	case errors.Is(err, cache.ErrRecordNotFound):
		httpStatus, code = http.StatusNotFound, "record_not_found"
	case errors.Is(err, backend.ErrBackendComputation):
		httpStatus, code = http.StatusBadGateway, "backend_error"
	default:
		httpStatus, code = http.StatusInternalServerError, "internal"
	}

	c.JSON(httpStatus, errorPayload{Error: err.Error(), Code: code})
}

type detectRequest struct {
	Path string `json:"path" binding:"required"`
}

// handleDetect runs detection for one file.
func (s *Service) handleDetect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorPayload{Error: err.Error(), Code: "bad_request"})
		return
	}

	record, err := s.Detect(c.Request.Context(), req.Path)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// handleSmells returns the cached record for a path, or every tracked
// path when none is given.
func (s *Service) handleSmells(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusOK, gin.H{"paths": s.cache.Paths()})
		return
	}

	record, err := s.cache.Get(s.canonical(path))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

type refactorRequest struct {
	SmellID string `json:"smell_id" binding:"required"`
	Mode    string `json:"mode"`
}

// handleRefactor starts a refactor session.
func (s *Service) handleRefactor(c *gin.Context) {
	var req refactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorPayload{Error: err.Error(), Code: "bad_request"})
		return
	}

	mode := session.ModeSingle
	if req.Mode == "all" {
		mode = session.ModeAll
	}

	id, err := s.controller.Start(c.Request.Context(), req.SmellID, mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"session_id": id})
}

// handleAccept commits the session awaiting review.
func (s *Service) handleAccept(c *gin.Context) {
	if err := s.controller.Commit(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.controller.Snapshot())
}

// handleReject discards the session awaiting review.
func (s *Service) handleReject(c *gin.Context) {
	if err := s.controller.Discard(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.controller.Snapshot())
}

// handlePreview renders unified diffs for the session awaiting review,
// for editors that cannot host native side-by-side views.
func (s *Service) handlePreview(c *gin.Context) {
	snap := s.controller.Snapshot()
	if snap.State != session.AwaitingReview {
		writeError(c, session.ErrNoReviewableSession)
		return
	}

	pairs, err := s.tracker.Pairs(c.Request.Context(), snap.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	previews := make([]gin.H, 0, len(pairs))
	for _, pair := range pairs {
		resolved := pair
		resolved.OriginalPath = s.resolve(pair.OriginalPath)
		text, err := diffview.Preview(resolved)
		if err != nil {
			writeError(c, err)
			return
		}
		previews = append(previews, gin.H{
			"original": pair.OriginalPath,
			"diff":     text,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": snap.ID,
		"previews":   previews,
	})
}

type wipeRequest struct {
	Path string `json:"path"`
}

// handleCacheWipe clears one record or the whole cache.
func (s *Service) handleCacheWipe(c *gin.Context) {
	var req wipeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorPayload{Error: err.Error(), Code: "bad_request"})
			return
		}
	}

	var err error
	if req.Path != "" {
		err = s.cache.Clear(c.Request.Context(), s.canonical(req.Path))
	} else {
		err = s.cache.ClearAll(c.Request.Context())
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// handleStatus projects the UI status for one file.
func (s *Service) handleStatus(c *gin.Context) {
	path := s.canonical(c.Query("path"))
	if path == "" {
		c.JSON(http.StatusBadRequest, errorPayload{Error: "path query parameter is required", Code: "bad_request"})
		return
	}

	record, err := s.cache.Get(path)
	if err != nil && !errors.Is(err, cache.ErrRecordNotFound) {
		writeError(c, err)
		return
	}

	snap := s.controller.Snapshot()
	projected := status.Project(record, snap, s.avail.Up())

	c.JSON(http.StatusOK, gin.H{
		"path":    path,
		"status":  projected.String(),
		"session": snap,
	})
}

// handleHealth reports this service's liveness and backend reachability.
func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"backend_up": s.avail.Up(),
	})
}
