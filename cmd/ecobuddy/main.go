// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command ecobuddy runs the editor-facing detection and refactoring
// daemon.
//
// Usage:
//
//	ecobuddy --workspace /path/to/project [--config ecobuddy.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/EcoBuddy/pkg/logging"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/backend"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/cache"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/config"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/diffview"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/health"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/logstream"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/session"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/storage/badger"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/telemetry"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/watcher"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ecobuddy: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "ecobuddy.yaml", "path to the configuration file")
		workspace  = flag.String("workspace", "", "workspace root (overrides config)")
		backendURL = flag.String("backend", "", "backend URL (overrides config)")
		listenAddr = flag.String("listen", "", "HTTP listen address (overrides config)")
		logLevel   = flag.String("log-level", "", "debug, info, warn, or error (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *workspace != "" {
		cfg.WorkspaceRoot = *workspace
	}
	if *backendURL != "" {
		cfg.BackendURL = *backendURL
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, cleanupLogger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer cleanupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Workspace store.
	dataDir := cfg.DataDir
	if !filepath.IsAbs(dataDir) && cfg.WorkspaceRoot != "" {
		dataDir = filepath.Join(cfg.WorkspaceRoot, dataDir)
	}
	store, err := badger.Open(badger.Config{
		Path:       dataDir,
		SyncWrites: true,
		Logger:     logger.Slog(),
	})
	if err != nil {
		return err
	}
	defer store.Close()

	// Cache, hydrated from the previous run.
	fileCache := cache.New(store, logger)
	if err := fileCache.Load(ctx); err != nil {
		return fmt.Errorf("load cache: %w", err)
	}

	// Diff tracking and crash recovery.
	tracker := diffview.NewTracker(store, &diffview.LoggingPort{Logger: logger}, logger)
	if swept, err := tracker.SweepOrphans(ctx); err != nil {
		return fmt.Errorf("sweep orphaned diff pairs: %w", err)
	} else if swept > 0 {
		logger.Info("recovered from previous run", "orphaned_pairs", swept)
	}

	// Backend client and availability monitoring.
	client, err := backend.NewClient(backend.DefaultConfig(cfg.BackendURL), logger)
	if err != nil {
		return err
	}
	healthCfg := health.DefaultConfig()
	healthCfg.Interval = cfg.HealthInterval
	monitor := health.NewMonitor(healthCfg, client, logger)
	monitor.Start(ctx)
	defer monitor.Stop()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	controller := session.NewController(cfg.WorkspaceRoot, client, fileCache,
		tracker, monitor, metrics, logger)
	// Registered after the store's defer so it runs first: the request
	// goroutine must be gone before badger closes.
	defer controller.Close()

	// Save watcher.
	if cfg.WatchWorkspace && cfg.WorkspaceRoot != "" {
		w, err := watcher.New(cfg.WorkspaceRoot, fileCache, logger)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start workspace watcher: %w", err)
		}
		defer w.Stop()
	}

	// HTTP surface.
	svc, err := eco_buddy.NewService(cfg, fileCache, client, controller,
		tracker, monitor, metrics, logger)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	svc.RegisterRoutes(router)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ecobuddy listening",
			"addr", cfg.ListenAddr,
			"workspace", cfg.WorkspaceRoot,
			"backend", cfg.BackendURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildLogger assembles the logger, including the websocket side
// channel when configured.
func buildLogger(cfg config.Config) (*logging.Logger, func(), error) {
	level := logging.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}

	logCfg := logging.Config{
		Level:   level,
		LogDir:  cfg.LogDir,
		Service: "ecobuddy",
	}

	if cfg.LogStreamURL != "" {
		exporter, err := logstream.New(logstream.DefaultConfig(cfg.LogStreamURL))
		if err != nil {
			return nil, nil, fmt.Errorf("start log stream: %w", err)
		}
		logCfg.Exporter = exporter
	}

	logger := logging.New(logCfg)
	return logger, func() { _ = logger.Close() }, nil
}
