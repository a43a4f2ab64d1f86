// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache implements the fingerprint-keyed smell cache and the
// derived smell index.
//
// # Design Principles
//
// FileRecords are the single source of truth for "what smells are known
// for file X". The smell index is always rebuilt from records and never
// consulted as truth. Records are retained when they go stale: the UI
// may still show outdated smells, but refactor requests against them are
// blocked until re-detection.
//
// # Thread Safety
//
// Cache is safe for concurrent use.
package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrRecordNotFound is returned when no record exists for a path.
	ErrRecordNotFound = errors.New("file record not found")

	// ErrSmellNotFound is returned when a smell id resolves to nothing.
	// A UI reference outliving its smell is a legitimate outcome, not a
	// programming error; callers must handle it as such.
	ErrSmellNotFound = errors.New("smell no longer present")
)
