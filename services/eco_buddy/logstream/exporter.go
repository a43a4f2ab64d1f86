// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logstream streams log entries to an external sink over a
// websocket.
//
// The stream is a side channel: it buffers, drops on overflow, and
// reconnects with backoff, but it never blocks or fails the logger that
// feeds it.
package logstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/EcoBuddy/pkg/logging"
	"github.com/AleutianAI/EcoBuddy/pkg/retry"
)

// wireEntry is the JSON frame sent per log entry.
type wireEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Service   string         `json:"service,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// Config holds configuration for the exporter.
type Config struct {
	// URL is the websocket endpoint, e.g. "ws://localhost:9001/logs".
	URL string

	// BufferSize bounds the in-flight entry queue. When full, new
	// entries are dropped rather than blocking the logger.
	BufferSize int

	// Reconnect bounds and paces one dial round after a lost
	// connection. When the round is exhausted the entry being delivered
	// is dropped; the next entry starts a fresh round.
	Reconnect retry.Policy

	// HandshakeTimeout bounds one dial attempt.
	HandshakeTimeout time.Duration
}

// DefaultConfig returns production settings for the given endpoint.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		BufferSize:       256,
		Reconnect:        retry.DefaultPolicy(),
		HandshakeTimeout: 5 * time.Second,
	}
}

// Exporter is a logging.LogExporter that writes entries to a websocket.
//
// # Thread Safety
//
// Safe for concurrent use.
type Exporter struct {
	config Config

	entries chan logging.LogEntry
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	dropped int
	closed  bool
}

// New creates and starts an exporter. The connection is established
// lazily by the pump goroutine; entries logged before the first
// successful dial sit in the buffer.
func New(config Config) (*Exporter, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("logstream URL is required")
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Exporter{
		config:  config,
		entries: make(chan logging.LogEntry, config.BufferSize),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go e.pump(ctx)
	return e, nil
}

// Export queues one entry. A full buffer drops the entry and counts it;
// the sink being behind must never stall the application.
func (e *Exporter) Export(ctx context.Context, entry logging.LogEntry) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("exporter closed")
	}
	e.mu.Unlock()

	select {
	case e.entries <- entry:
		return nil
	default:
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
		return fmt.Errorf("logstream buffer full, entry dropped")
	}
}

// Dropped returns how many entries were discarded due to backpressure.
func (e *Exporter) Dropped() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Flush waits for the queue to drain or the context to expire.
func (e *Exporter) Flush(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if len(e.entries) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops the pump and closes the connection.
func (e *Exporter) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	<-e.done
	return nil
}

// pump owns the connection: dial with backoff, write queued entries,
// reconnect on write failure.
func (e *Exporter) pump(ctx context.Context) {
	defer close(e.done)

	var conn *websocket.Conn
	defer func() {
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-e.entries:
			if conn == nil {
				if conn = e.connect(ctx); conn == nil {
					if ctx.Err() != nil {
						return
					}
					e.drop()
					continue
				}
			}
			if err := conn.WriteJSON(toWire(entry)); err != nil {
				conn.Close()
				if conn = e.connect(ctx); conn == nil {
					if ctx.Err() != nil {
						return
					}
					e.drop()
					continue
				}
				// One redelivery attempt on the fresh connection; after
				// that the entry is dropped.
				if err := conn.WriteJSON(toWire(entry)); err != nil {
					e.drop()
				}
			}
		}
	}
}

// connect runs one dial round under the reconnect policy. A nil return
// means the round was exhausted or ctx was cancelled; the caller
// decides what happens to the entry it is holding.
func (e *Exporter) connect(ctx context.Context) *websocket.Conn {
	dialer := websocket.Dialer{HandshakeTimeout: e.config.HandshakeTimeout}

	var conn *websocket.Conn
	err := e.config.Reconnect.Do(ctx, func(ctx context.Context) error {
		c, _, err := dialer.DialContext(ctx, e.config.URL, nil)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil
	}
	return conn
}

func (e *Exporter) drop() {
	e.mu.Lock()
	e.dropped++
	e.mu.Unlock()
}

func toWire(entry logging.LogEntry) wireEntry {
	return wireEntry{
		Timestamp: entry.Timestamp,
		Level:     entry.Level.String(),
		Message:   entry.Message,
		Service:   entry.Service,
		Attrs:     entry.Attrs,
	}
}

var _ logging.LogExporter = (*Exporter)(nil)
