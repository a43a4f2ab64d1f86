// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLevelString verifies level names.
func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

// TestExporterReceivesEntries verifies entries at or above the configured
// level reach the exporter with their attributes intact.
func TestExporterReceivesEntries(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{Level: LevelInfo, Service: "test", Quiet: true, Exporter: exporter})
	defer logger.Close()

	logger.Info("session started", "session_id", "abc")
	logger.Debug("filtered out")

	// Export is asynchronous.
	require.Eventually(t, func() bool {
		return len(exporter.Entries()) == 1
	}, time.Second, 10*time.Millisecond)

	entries := exporter.Entries()
	assert.Equal(t, "session started", entries[0].Message)
	assert.Equal(t, LevelInfo, entries[0].Level)
	assert.Equal(t, "test", entries[0].Service)
	assert.Equal(t, "abc", entries[0].Attrs["session_id"])
}

// TestWith verifies child loggers share destinations without mutating
// the parent.
func TestWith(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{Level: LevelInfo, Quiet: true, Exporter: exporter})
	defer logger.Close()

	child := logger.With("path", "a.py")
	require.NotNil(t, child)
	assert.NotSame(t, logger, child)

	child.Info("detected")
	require.Eventually(t, func() bool {
		return len(exporter.Entries()) == 1
	}, time.Second, 10*time.Millisecond)
}

// TestArgsToMap verifies odd trailing args are ignored.
func TestArgsToMap(t *testing.T) {
	m := argsToMap([]any{"a", 1, "b", "two", "dangling"})
	assert.Equal(t, 1, m["a"])
	assert.Equal(t, "two", m["b"])
	assert.Len(t, m, 2)
}
