// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package status derives the per-file UI status.
//
// Project is the single status source the editor UI reads. It holds no
// state of its own: everything is computed from the file record, the
// current session snapshot, and backend availability.
package status

import (
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/cache"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/session"
)

// Status is the per-file state shown in the editor.
type Status int

const (
	// Clean means no known smells for the file.
	Clean Status = iota

	// HasSmells means fresh smells exist for the file.
	HasSmells

	// Outdated means the cached smells no longer match the live file.
	Outdated

	// Queued means a refactor request for this file is in flight or
	// being applied.
	Queued

	// AwaitingReview means diffs for this file are open for a decision.
	AwaitingReview

	// Failed means the most recent session on this file failed.
	Failed

	// ServerDown means the backend is unreachable; nothing can be
	// trusted or requested.
	ServerDown
)

// String returns the status name used in UI payloads.
func (s Status) String() string {
	switch s {
	case HasSmells:
		return "has_smells"
	case Outdated:
		return "outdated"
	case Queued:
		return "queued"
	case AwaitingReview:
		return "awaiting_review"
	case Failed:
		return "failed"
	case ServerDown:
		return "server_down"
	default:
		return "clean"
	}
}

// Project computes the status for one file.
//
// # Description
//
// Precedence, highest first: backend down, session activity targeting
// this file (queued, awaiting review, failed), record staleness, smell
// presence. A nil record means the file was never detected and shows
// Clean.
//
// # Inputs
//
//   - record: The file's cache record; nil if none exists.
//   - sess: Current session snapshot.
//   - serverUp: Backend availability.
func Project(record *cache.FileRecord, sess session.Snapshot, serverUp bool) Status {
	if !serverUp {
		return ServerDown
	}

	if record != nil && sess.TargetPath == record.Path {
		switch sess.State {
		case session.Requesting, session.Committing:
			return Queued
		case session.AwaitingReview:
			return AwaitingReview
		case session.Failed:
			return Failed
		}
	}

	if record == nil {
		return Clean
	}
	if record.Freshness == cache.Outdated {
		return Outdated
	}
	if len(record.Smells) > 0 {
		return HasSmells
	}
	return Clean
}
