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

	"github.com/AleutianAI/EcoBuddy/pkg/logging"
)

// LoggingPort is the default EditorPort for headless operation.
//
// The editor extension drives its own diff tabs off the status and
// session endpoints; the daemon side only needs the bookkeeping, so
// open and close intents are logged rather than pushed. Extensions
// that want pushed views supply their own EditorPort.
type LoggingPort struct {
	Logger *logging.Logger
}

// OpenDiff implements EditorPort.
func (p *LoggingPort) OpenDiff(ctx context.Context, original, refactored string) error {
	p.logger().Debug("diff view requested", "original", original, "refactored", refactored)
	return nil
}

// CloseDiff implements EditorPort.
func (p *LoggingPort) CloseDiff(ctx context.Context, original, refactored string) error {
	p.logger().Debug("diff view dismissed", "original", original, "refactored", refactored)
	return nil
}

func (p *LoggingPort) logger() *logging.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logging.Default()
}

var _ EditorPort = (*LoggingPort)(nil)
