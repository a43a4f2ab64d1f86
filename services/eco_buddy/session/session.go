// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"time"

	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/backend"
)

// State is the lifecycle phase of a refactor session.
type State int

const (
	// Idle means no session exists.
	Idle State = iota

	// Requesting means the backend call is in flight.
	Requesting

	// AwaitingReview means diffs are open and the user must decide.
	AwaitingReview

	// Committing means accepted changes are being applied.
	Committing

	// Committed is terminal: changes applied, artifacts cleaned.
	Committed

	// Failed is terminal: the request or the commit failed.
	Failed

	// Discarded is terminal: the user rejected the changes.
	Discarded
)

// String returns the state name used in logs and status payloads.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case AwaitingReview:
		return "awaiting_review"
	case Committing:
		return "committing"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state releases the single-flight slot.
func (s State) Terminal() bool {
	return s == Committed || s == Failed || s == Discarded
}

// Mode selects the refactoring scope.
type Mode int

const (
	// ModeSingle refactors the one requested occurrence.
	ModeSingle Mode = iota

	// ModeAll refactors every occurrence of the rule in the workspace.
	ModeAll
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeAll {
		return "all"
	}
	return "single"
}

// session is the controller's internal per-attempt record.
type session struct {
	id                  string
	mode                Mode
	smellID             string
	targetPath          string
	capturedFingerprint string
	state               State
	result              *backend.RefactoredData
	err                 error
	createdAt           time.Time
}

// Snapshot is an immutable view of the current session for status
// projection and the HTTP surface.
type Snapshot struct {
	// ID is the session id; empty when State is Idle.
	ID string `json:"id,omitempty"`

	// State is the lifecycle phase.
	State State `json:"-"`

	// StateName is State rendered for JSON consumers.
	StateName string `json:"state"`

	// Mode is the refactoring scope.
	Mode string `json:"mode,omitempty"`

	// SmellID is the smell the session targets.
	SmellID string `json:"smell_id,omitempty"`

	// TargetPath is the file owning the smell.
	TargetPath string `json:"target_path,omitempty"`

	// EnergySaved is the backend estimate, present once a result exists.
	EnergySaved float64 `json:"energy_saved,omitempty"`

	// Error is the failure description for Failed sessions.
	Error string `json:"error,omitempty"`
}

func (s *session) snapshot() Snapshot {
	snap := Snapshot{
		ID:         s.id,
		State:      s.state,
		StateName:  s.state.String(),
		Mode:       s.mode.String(),
		SmellID:    s.smellID,
		TargetPath: s.targetPath,
	}
	if s.result != nil {
		snap.EnergySaved = s.result.EnergySaved
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}
