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
	"context"
	"sync"
)

// EditorCall records one OpenDiff or CloseDiff invocation.
type EditorCall struct {
	Original   string
	Refactored string
	Close      bool
}

// MockEditor is a test double for EditorPort.
//
// # Thread Safety
//
// Safe for concurrent use.
type MockEditor struct {
	mu sync.Mutex

	OpenDiffFunc  func(ctx context.Context, original, refactored string) error
	CloseDiffFunc func(ctx context.Context, original, refactored string) error

	Calls []EditorCall
}

// OpenDiff implements EditorPort.
func (m *MockEditor) OpenDiff(ctx context.Context, original, refactored string) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, EditorCall{Original: original, Refactored: refactored})
	fn := m.OpenDiffFunc
	m.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx, original, refactored)
}

// CloseDiff implements EditorPort.
func (m *MockEditor) CloseDiff(ctx context.Context, original, refactored string) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, EditorCall{Original: original, Refactored: refactored, Close: true})
	fn := m.CloseDiffFunc
	m.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx, original, refactored)
}

// CloseCalls returns only the recorded close invocations.
func (m *MockEditor) CloseCalls() []EditorCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []EditorCall
	for _, call := range m.Calls {
		if call.Close {
			out = append(out, call)
		}
	}
	return out
}

var _ EditorPort = (*MockEditor)(nil)
