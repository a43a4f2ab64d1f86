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

import (
	"encoding/hex"
	"fmt"
	"hash/fnv"
)

// NewID derives the stable smell identifier.
//
// # Description
//
// The id is an FNV-64a digest of (path, rule symbol, primary occurrence
// start line and column), hex-encoded. It is never counter-based: the
// same smell instance produces the same id on every detection run, so a
// UI action captured before a cache refresh still resolves as long as
// the instance persists.
//
// # Inputs
//
//   - path: The owning file path.
//   - rule: The detection rule.
//   - primary: The primary occurrence.
//
// # Outputs
//
//   - string: 16-hex-digit identifier.
func NewID(path string, rule RuleKind, primary Occurrence) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%d|%d", path, rule.Symbol(), primary.StartLine, primary.StartCol)
	return hex.EncodeToString(h.Sum(nil))
}

// Normalize fills derived fields on a backend-decoded smell: the owning
// path and the stable ID. Returns ErrNoOccurrences when the smell has no
// location to anchor the id to.
func Normalize(s *Smell, path string) error {
	if len(s.Occurrences) == 0 {
		return fmt.Errorf("%w: rule %s in %s", ErrNoOccurrences, s.Rule, path)
	}
	s.Path = path
	s.ID = NewID(path, s.Rule, s.Primary())
	return nil
}
