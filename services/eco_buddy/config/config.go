// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the workspace configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/smells"
)

// Config is the workspace configuration.
type Config struct {
	// WorkspaceRoot is the source directory served to the backend.
	// Empty means not configured; refactor requests will be refused.
	WorkspaceRoot string `yaml:"workspace_root"`

	// BackendURL is the detection/refactoring service root.
	BackendURL string `yaml:"backend_url"`

	// DataDir holds the workspace store (cache records, diff pairs).
	DataDir string `yaml:"data_dir"`

	// ListenAddr is the editor-facing HTTP address.
	ListenAddr string `yaml:"listen_addr"`

	// EnabledRules lists rule symbols sent with detection requests.
	// Empty enables every known rule.
	EnabledRules []string `yaml:"enabled_rules"`

	// HealthInterval is the backend poll cadence.
	HealthInterval time.Duration `yaml:"health_interval"`

	// WatchWorkspace enables the filesystem save watcher.
	WatchWorkspace bool `yaml:"watch_workspace"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`

	// LogDir enables JSON file logging when set.
	LogDir string `yaml:"log_dir"`

	// LogStreamURL enables the websocket log side-channel when set.
	LogStreamURL string `yaml:"log_stream_url"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		BackendURL:     "http://localhost:8090",
		ListenAddr:     "localhost:8095",
		DataDir:        ".ecobuddy",
		HealthInterval: 10 * time.Second,
		WatchWorkspace: true,
		LogLevel:       "info",
	}
}

// Load reads the YAML file at path, layered over Default. A missing
// file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values. Called by Load and by main after flag
// overrides.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend_url is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.HealthInterval <= 0 {
		return fmt.Errorf("health_interval must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}
	if _, err := c.EnabledRuleKinds(); err != nil {
		return err
	}
	return nil
}

// EnabledRuleKinds resolves the configured rule symbols. An empty list
// means every known rule.
func (c *Config) EnabledRuleKinds() ([]smells.RuleKind, error) {
	if len(c.EnabledRules) == 0 {
		return smells.AllRules(), nil
	}

	kinds := make([]smells.RuleKind, 0, len(c.EnabledRules))
	for _, symbol := range c.EnabledRules {
		kind, err := smells.DecodeRuleKind(symbol)
		if err != nil {
			return nil, fmt.Errorf("enabled_rules: %w", err)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
