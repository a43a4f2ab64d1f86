// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/EcoBuddy/pkg/logging"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/smells"
	"github.com/AleutianAI/EcoBuddy/services/eco_buddy/storage/badger"
)

// Freshness describes whether a record still matches the live file.
type Freshness int

const (
	// FreshnessUnknown means no record exists for the path.
	FreshnessUnknown Freshness = iota

	// Fresh means the stored fingerprint matches the live file.
	Fresh

	// Outdated means the live file diverged since detection. Smells are
	// retained but untrustworthy; refactors against them are blocked.
	Outdated
)

// String returns the status name for logs and projections.
func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Outdated:
		return "outdated"
	default:
		return "unknown"
	}
}

// FileRecord is the per-file cache entry.
//
// Owned exclusively by Cache. Created on first detection, replaced
// wholesale on re-detection, marked Outdated on divergence, destroyed
// only by an explicit wipe.
type FileRecord struct {
	// Path is the file this record describes.
	Path string `json:"path"`

	// Fingerprint is the content digest at last detection.
	Fingerprint string `json:"fingerprint"`

	// Smells are the findings from the last detection.
	Smells []smells.Smell `json:"smells"`

	// Freshness flags whether Smells still describe the live file.
	Freshness Freshness `json:"freshness"`

	// DetectedAt is when the last detection completed.
	DetectedAt time.Time `json:"detected_at"`
}

// storeKey is the badger key for a record.
func storeKey(path string) []byte {
	return []byte("filerec/" + path)
}

var recordPrefix = []byte("filerec/")

// Cache is the fingerprint-keyed smell cache.
//
// # Description
//
// Cache holds one FileRecord per detected file plus a secondary index
// from smell id to its owning record. Records are persisted to the
// workspace store so a restart does not force full re-detection; the
// in-memory map is the fast path and the store is write-through.
//
// # Thread Safety
//
// Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	records map[string]*FileRecord
	index   map[string]string // smell id -> owning path

	store  *badger.DB
	logger *logging.Logger
}

// New creates a Cache backed by the given workspace store.
//
// # Inputs
//
//   - store: Workspace store for persistence. Must not be nil.
//   - logger: Logger; nil falls back to the default logger.
//
// # Outputs
//
//   - *Cache: Empty cache. Call Load to hydrate persisted records.
func New(store *badger.DB, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{
		records: make(map[string]*FileRecord),
		index:   make(map[string]string),
		store:   store,
		logger:  logger,
	}
}

// Load hydrates records persisted by a previous run and rebuilds the
// smell index from them. Corrupt entries are skipped with a warning
// rather than failing startup.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.IteratorOptions{Prefix: recordPrefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec FileRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					c.logger.Warn("skipping corrupt cache record",
						"key", string(it.Item().Key()), "error", err.Error())
					return nil
				}
				c.records[rec.Path] = &rec
				c.indexRecordLocked(&rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Upsert replaces the record for path with a fresh detection result.
//
// # Description
//
// The record's smells and fingerprint are replaced wholesale, freshness
// becomes Fresh, and the smell index entries for the path are rebuilt:
// new smells are inserted and entries for smells no longer present are
// dropped. The record is persisted write-through.
//
// # Inputs
//
//   - ctx: Context for the store write.
//   - path: The file path.
//   - fingerprint: Content digest at detection time.
//   - found: The detected smells (already normalized).
//
// # Outputs
//
//   - error: Non-nil if persistence failed; memory state is updated
//     regardless so the UI stays coherent within the session.
func (c *Cache) Upsert(ctx context.Context, path, fingerprint string, found []smells.Smell) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.records[path]; ok {
		c.unindexRecordLocked(old)
	}

	rec := &FileRecord{
		Path:        path,
		Fingerprint: fingerprint,
		Smells:      found,
		Freshness:   Fresh,
		DetectedAt:  time.Now(),
	}
	c.records[path] = rec
	c.indexRecordLocked(rec)

	return c.persistLocked(ctx, rec)
}

// CheckFreshness compares the live fingerprint against the stored one.
//
// # Description
//
// A mismatch flips the stored record to Outdated (the record is
// retained, not deleted) and returns Outdated. A missing record returns
// FreshnessUnknown. The comparison is a string equality; no content
// diffing happens here.
func (c *Cache) CheckFreshness(ctx context.Context, path, liveFingerprint string) Freshness {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[path]
	if !ok {
		return FreshnessUnknown
	}

	if rec.Fingerprint == liveFingerprint {
		return Fresh
	}

	if rec.Freshness != Outdated {
		rec.Freshness = Outdated
		if err := c.persistLocked(ctx, rec); err != nil {
			c.logger.Warn("failed to persist freshness flip", "path", path, "error", err.Error())
		}
		c.logger.Info("file diverged from cached detection", "path", path)
	}
	return Outdated
}

// MarkOutdated force-flags a record, used after an accepted refactor
// rewrites the file. Missing records are a no-op.
func (c *Cache) MarkOutdated(ctx context.Context, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[path]
	if !ok || rec.Freshness == Outdated {
		return
	}
	rec.Freshness = Outdated
	if err := c.persistLocked(ctx, rec); err != nil {
		c.logger.Warn("failed to persist outdated mark", "path", path, "error", err.Error())
	}
}

// Get returns a copy of the record for path.
//
// # Outputs
//
//   - *FileRecord: Copy of the record; mutating it does not affect the
//     cache.
//   - error: ErrRecordNotFound on a miss.
func (c *Cache) Get(path string) (*FileRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.records[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, path)
	}
	return copyRecord(rec), nil
}

// BySmellID resolves a smell id to its owning path and smell data.
//
// # Description
//
// The index is derived purely from current records; ids are stable
// across re-detections of an unchanged smell, so a miss means the smell
// was fixed or moved. Callers must treat ErrSmellNotFound as a
// first-class outcome.
func (c *Cache) BySmellID(id string) (string, *smells.Smell, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	path, ok := c.index[id]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrSmellNotFound, id)
	}

	rec := c.records[path]
	for i := range rec.Smells {
		if rec.Smells[i].ID == id {
			s := rec.Smells[i]
			return path, &s, nil
		}
	}

	// Index said yes but the record disagrees; treat as a miss.
	return "", nil, fmt.Errorf("%w: %s", ErrSmellNotFound, id)
}

// Paths returns the paths of all cached records.
func (c *Cache) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	paths := make([]string, 0, len(c.records))
	for path := range c.records {
		paths = append(paths, path)
	}
	return paths
}

// Clear removes the record for path and its index entries.
func (c *Cache) Clear(ctx context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[path]
	if !ok {
		return nil
	}
	c.unindexRecordLocked(rec)
	delete(c.records, path)

	return c.store.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Delete(storeKey(path))
	})
}

// ClearAll wipes every record and index entry. Used by the explicit
// cache-wipe command and by configuration reset.
func (c *Cache) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = make(map[string]*FileRecord)
	c.index = make(map[string]string)

	return c.store.DeletePrefix(ctx, recordPrefix)
}

func (c *Cache) indexRecordLocked(rec *FileRecord) {
	for i := range rec.Smells {
		c.index[rec.Smells[i].ID] = rec.Path
	}
}

func (c *Cache) unindexRecordLocked(rec *FileRecord) {
	for i := range rec.Smells {
		delete(c.index, rec.Smells[i].ID)
	}
}

func (c *Cache) persistLocked(ctx context.Context, rec *FileRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.Path, err)
	}
	return c.store.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Set(storeKey(rec.Path), data)
	})
}

func copyRecord(rec *FileRecord) *FileRecord {
	out := *rec
	out.Smells = make([]smells.Smell, len(rec.Smells))
	copy(out.Smells, rec.Smells)
	return &out
}
