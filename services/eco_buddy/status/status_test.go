// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/cache"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/session"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/smells"
)

func record(path string, freshness cache.Freshness, smellCount int) *cache.FileRecord {
	rec := &cache.FileRecord{Path: path, Fingerprint: "H1", Freshness: freshness}
	for i := 0; i < smellCount; i++ {
		rec.Smells = append(rec.Smells, smells.Smell{
			ID:   "s",
			Rule: smells.RuleLongLambda,
			Path: path,
		})
	}
	return rec
}

func idle() session.Snapshot {
	return session.Snapshot{State: session.Idle}
}

// TestProjectPrecedence covers the full precedence table.
func TestProjectPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		record   *cache.FileRecord
		sess     session.Snapshot
		serverUp bool
		want     Status
	}{
		{
			name:     "server down dominates everything",
			record:   record("a.py", cache.Fresh, 3),
			sess:     session.Snapshot{State: session.AwaitingReview, TargetPath: "a.py"},
			serverUp: false,
			want:     ServerDown,
		},
		{
			name:     "requesting shows queued",
			record:   record("a.py", cache.Fresh, 1),
			sess:     session.Snapshot{State: session.Requesting, TargetPath: "a.py"},
			serverUp: true,
			want:     Queued,
		},
		{
			name:     "committing shows queued",
			record:   record("a.py", cache.Fresh, 1),
			sess:     session.Snapshot{State: session.Committing, TargetPath: "a.py"},
			serverUp: true,
			want:     Queued,
		},
		{
			name:     "awaiting review",
			record:   record("a.py", cache.Fresh, 1),
			sess:     session.Snapshot{State: session.AwaitingReview, TargetPath: "a.py"},
			serverUp: true,
			want:     AwaitingReview,
		},
		{
			name:     "failed session surfaces",
			record:   record("a.py", cache.Fresh, 1),
			sess:     session.Snapshot{State: session.Failed, TargetPath: "a.py"},
			serverUp: true,
			want:     Failed,
		},
		{
			name:     "session on another file is ignored",
			record:   record("b.py", cache.Fresh, 2),
			sess:     session.Snapshot{State: session.AwaitingReview, TargetPath: "a.py"},
			serverUp: true,
			want:     HasSmells,
		},
		{
			name:     "outdated beats smells",
			record:   record("a.py", cache.Outdated, 2),
			sess:     idle(),
			serverUp: true,
			want:     Outdated,
		},
		{
			name:     "fresh smells",
			record:   record("a.py", cache.Fresh, 2),
			sess:     idle(),
			serverUp: true,
			want:     HasSmells,
		},
		{
			name:     "fresh and empty is clean",
			record:   record("a.py", cache.Fresh, 0),
			sess:     idle(),
			serverUp: true,
			want:     Clean,
		},
		{
			name:     "never detected is clean",
			record:   nil,
			sess:     idle(),
			serverUp: true,
			want:     Clean,
		},
		{
			name:     "committed session no longer masks the record",
			record:   record("a.py", cache.Outdated, 1),
			sess:     session.Snapshot{State: session.Committed, TargetPath: "a.py"},
			serverUp: true,
			want:     Outdated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Project(tt.record, tt.sess, tt.serverUp))
		})
	}
}

// TestStatusNames pins the wire names the UI keys off.
func TestStatusNames(t *testing.T) {
	assert.Equal(t, "clean", Clean.String())
	assert.Equal(t, "has_smells", HasSmells.String())
	assert.Equal(t, "outdated", Outdated.String())
	assert.Equal(t, "queued", Queued.String())
	assert.Equal(t, "awaiting_review", AwaitingReview.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "server_down", ServerDown.String())
}
