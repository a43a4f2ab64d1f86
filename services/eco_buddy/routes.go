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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the editor-facing API on the router.
//
// Routes:
//
//	POST /v1/ecobuddy/detect           run detection for a file
//	GET  /v1/ecobuddy/smells           cached smells (path query) or tracked paths
//	POST /v1/ecobuddy/refactor         start a refactor session
//	POST /v1/ecobuddy/refactor/accept  commit the reviewed changes
//	POST /v1/ecobuddy/refactor/reject  discard the reviewed changes
//	GET  /v1/ecobuddy/refactor/preview unified diffs of the session under review
//	POST /v1/ecobuddy/cache/wipe       clear one record or all
//	GET  /v1/ecobuddy/status           per-file UI status projection
//	GET  /v1/ecobuddy/health           service liveness + backend reachability
//	GET  /metrics                      Prometheus metrics
func (s *Service) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/v1/ecobuddy")
	{
		v1.POST("/detect", s.handleDetect)
		v1.GET("/smells", s.handleSmells)
		v1.POST("/refactor", s.handleRefactor)
		v1.POST("/refactor/accept", s.handleAccept)
		v1.POST("/refactor/reject", s.handleReject)
		v1.GET("/refactor/preview", s.handlePreview)
		v1.POST("/cache/wipe", s.handleCacheWipe)
		v1.GET("/status", s.handleStatus)
		v1.GET("/health", s.handleHealth)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
