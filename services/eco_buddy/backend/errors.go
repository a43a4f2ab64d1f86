// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backend implements the HTTP client for the detection and
// refactoring service. All computation happens server-side; this client
// only ships file references and decodes results.
package backend

import "errors"

// Sentinel errors for backend calls.
var (
	// ErrBackendComputation is returned when the backend answered but the
	// computation failed: a 4xx/5xx status or a malformed body. Transport
	// failures (connection refused, timeout) wrap ErrUnreachable instead.
	ErrBackendComputation = errors.New("backend computation failed")

	// ErrUnreachable is returned when the backend could not be reached at
	// all. The health monitor distinguishes this from computation errors.
	ErrUnreachable = errors.New("backend unreachable")
)
