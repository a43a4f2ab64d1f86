// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diffview

import (
	"fmt"
	"os"

	"github.com/pmezard/go-difflib/difflib"
)

// Preview renders a unified diff of the pair for UIs that cannot host a
// native side-by-side view.
//
// # Outputs
//
//   - string: Unified diff with three lines of context; empty when the
//     files are identical.
//   - error: Non-nil if either file cannot be read.
func Preview(pair DiffPair) (string, error) {
	original, err := os.ReadFile(pair.OriginalPath)
	if err != nil {
		return "", fmt.Errorf("read original %s: %w", pair.OriginalPath, err)
	}
	refactored, err := os.ReadFile(pair.RefactoredPath)
	if err != nil {
		return "", fmt.Errorf("read refactored %s: %w", pair.RefactoredPath, err)
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(original)),
		B:        difflib.SplitLines(string(refactored)),
		FromFile: pair.OriginalPath,
		ToFile:   pair.RefactoredPath,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("render unified diff: %w", err)
	}
	return text, nil
}
