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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/EcoBuddy/pkg/logging"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/smells"
)

// FilePair is one original/refactored file produced by the backend. The
// refactored path points into the backend-managed temp directory.
type FilePair struct {
	Original   string `json:"original"`
	Refactored string `json:"refactored"`
}

// RefactoredData is the backend's answer to a refactor request.
//
// TargetFile is the file that owned the requested smell; AffectedFiles
// are other files the refactoring had to touch (callers of a changed
// signature, moved members). TempDir is the backend-managed directory
// holding every refactored file; the caller owns its lifecycle once the
// response is delivered.
type RefactoredData struct {
	TargetFile    FilePair   `json:"target_file"`
	AffectedFiles []FilePair `json:"affected_files"`
	EnergySaved   float64    `json:"energy_saved"`
	TempDir       string     `json:"temp_dir"`
}

// Pairs returns the target pair followed by the affected pairs.
func (r *RefactoredData) Pairs() []FilePair {
	out := make([]FilePair, 0, 1+len(r.AffectedFiles))
	out = append(out, r.TargetFile)
	return append(out, r.AffectedFiles...)
}

// Config holds configuration for the backend client.
type Config struct {
	// BaseURL is the backend root, e.g. "http://localhost:8090".
	BaseURL string

	// DetectTimeout bounds a single detection call.
	DetectTimeout time.Duration

	// RefactorTimeout bounds a refactor call. Refactorings can take
	// considerably longer than detection.
	RefactorTimeout time.Duration

	// HealthTimeout bounds a health probe.
	HealthTimeout time.Duration
}

// DefaultConfig returns production timeouts for the given base URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		DetectTimeout:   30 * time.Second,
		RefactorTimeout: 5 * time.Minute,
		HealthTimeout:   3 * time.Second,
	}
}

// Client is the detection/refactoring backend client.
//
// # Thread Safety
//
// Safe for concurrent use; the underlying http.Client handles pooling.
type Client struct {
	config Config
	http   *http.Client
	logger *logging.Logger
}

// NewClient creates a backend client.
//
// # Inputs
//
//   - config: Client configuration; BaseURL must be non-empty.
//   - logger: Logger; nil falls back to the default logger.
func NewClient(config Config, logger *logging.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		config: config,
		http:   &http.Client{},
		logger: logger,
	}, nil
}

// detectRequest is the wire request for POST /smells.
type detectRequest struct {
	FilePath      string   `json:"file_path"`
	EnabledSmells []string `json:"enabled_smells"`
}

// refactorRequest is the wire request for POST /refactor and
// POST /refactorAll.
type refactorRequest struct {
	SourceDir string       `json:"source_dir"`
	Smell     smells.Smell `json:"smell"`
}

// DetectSmells asks the backend to analyze a file.
//
// # Description
//
// Sends the file path and the enabled rule symbols; the backend reads
// the file itself (it shares the workspace filesystem). Returned smells
// carry no id or path yet — the caller normalizes them against the path
// it asked about.
//
// # Outputs
//
//   - []smells.Smell: Findings; empty slice for a clean file.
//   - error: ErrUnreachable, ErrBackendComputation, or a decode error
//     (an unknown rule symbol surfaces as smells.ErrUnknownRule).
func (c *Client) DetectSmells(ctx context.Context, filePath string, enabled []smells.RuleKind) ([]smells.Smell, error) {
	symbols := make([]string, 0, len(enabled))
	for _, kind := range enabled {
		symbols = append(symbols, kind.Symbol())
	}

	var found []smells.Smell
	err := c.post(ctx, "/smells", c.config.DetectTimeout,
		detectRequest{FilePath: filePath, EnabledSmells: symbols}, &found)
	if err != nil {
		return nil, err
	}
	if found == nil {
		found = []smells.Smell{}
	}
	return found, nil
}

// Refactor asks the backend to compute a refactoring for one smell
// occurrence.
func (c *Client) Refactor(ctx context.Context, sourceDir string, smell smells.Smell) (*RefactoredData, error) {
	var data RefactoredData
	err := c.post(ctx, "/refactor", c.config.RefactorTimeout,
		refactorRequest{SourceDir: sourceDir, Smell: smell}, &data)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// RefactorAll asks the backend to fix every occurrence of the smell's
// rule across the source directory.
func (c *Client) RefactorAll(ctx context.Context, sourceDir string, smell smells.Smell) (*RefactoredData, error) {
	var data RefactoredData
	err := c.post(ctx, "/refactorAll", c.config.RefactorTimeout,
		refactorRequest{SourceDir: sourceDir, Smell: smell}, &data)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// Health probes the backend. A nil error means the service is up and
// answering.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", ErrBackendComputation, resp.StatusCode)
	}
	return nil
}

// post sends a JSON request and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, path string, timeout time.Duration, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnreachable, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend call finished",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %d: %s",
			ErrBackendComputation, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrBackendComputation, path, err)
	}
	return nil
}
