// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package smells

import "errors"

// Sentinel errors for smell decoding.
var (
	// ErrUnknownRule is returned when the backend reports a rule symbol
	// outside the closed RuleKind set.
	ErrUnknownRule = errors.New("unknown smell rule")

	// ErrNoOccurrences is returned when a smell arrives without any
	// source location; such a smell cannot be given a stable id.
	ErrNoOccurrences = errors.New("smell has no occurrences")
)
