// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"context"
	"sync"

	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/smells"
)

// Service is the backend surface consumed by the session controller,
// the detection flow, and the health monitor. *Client implements it.
type Service interface {
	DetectSmells(ctx context.Context, filePath string, enabled []smells.RuleKind) ([]smells.Smell, error)
	Refactor(ctx context.Context, sourceDir string, smell smells.Smell) (*RefactoredData, error)
	RefactorAll(ctx context.Context, sourceDir string, smell smells.Smell) (*RefactoredData, error)
	Health(ctx context.Context) error
}

var _ Service = (*Client)(nil)
var _ Service = (*Mock)(nil)

// RefactorCall records one Refactor or RefactorAll invocation.
type RefactorCall struct {
	SourceDir string
	Smell     smells.Smell
	All       bool
}

// Mock is a test double for Service.
//
// Behavior is injected through the Func fields; unset funcs return zero
// values. Calls are recorded for assertion.
//
// # Thread Safety
//
// Safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	DetectSmellsFunc func(ctx context.Context, filePath string, enabled []smells.RuleKind) ([]smells.Smell, error)
	RefactorFunc     func(ctx context.Context, sourceDir string, smell smells.Smell) (*RefactoredData, error)
	RefactorAllFunc  func(ctx context.Context, sourceDir string, smell smells.Smell) (*RefactoredData, error)
	HealthFunc       func(ctx context.Context) error

	DetectCalls   []string
	RefactorCalls []RefactorCall
	HealthCalls   int
}

// DetectSmells implements Service.
func (m *Mock) DetectSmells(ctx context.Context, filePath string, enabled []smells.RuleKind) ([]smells.Smell, error) {
	m.mu.Lock()
	m.DetectCalls = append(m.DetectCalls, filePath)
	fn := m.DetectSmellsFunc
	m.mu.Unlock()

	if fn == nil {
		return []smells.Smell{}, nil
	}
	return fn(ctx, filePath, enabled)
}

// Refactor implements Service.
func (m *Mock) Refactor(ctx context.Context, sourceDir string, smell smells.Smell) (*RefactoredData, error) {
	m.mu.Lock()
	m.RefactorCalls = append(m.RefactorCalls, RefactorCall{SourceDir: sourceDir, Smell: smell})
	fn := m.RefactorFunc
	m.mu.Unlock()

	if fn == nil {
		return &RefactoredData{}, nil
	}
	return fn(ctx, sourceDir, smell)
}

// RefactorAll implements Service.
func (m *Mock) RefactorAll(ctx context.Context, sourceDir string, smell smells.Smell) (*RefactoredData, error) {
	m.mu.Lock()
	m.RefactorCalls = append(m.RefactorCalls, RefactorCall{SourceDir: sourceDir, Smell: smell, All: true})
	fn := m.RefactorAllFunc
	m.mu.Unlock()

	if fn == nil {
		return &RefactoredData{}, nil
	}
	return fn(ctx, sourceDir, smell)
}

// Health implements Service.
func (m *Mock) Health(ctx context.Context) error {
	m.mu.Lock()
	m.HealthCalls++
	fn := m.HealthFunc
	m.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// RefactorCallCount returns how many refactor calls were recorded.
func (m *Mock) RefactorCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RefactorCalls)
}
