// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned by VideoRepo.Create when the video already
	// exists inside the dedupe window. Callers treat it as a skip, not a
	// failure; the volatile metadata refresh has already happened.
	ErrDuplicate = errors.New("duplicate record inside dedupe window")

	// ErrStaleWrite is returned when an optimistic update lost to
	// concurrent writers casRetries times in a row. The caller's next
	// scheduled pass will pick the row up again.
	ErrStaleWrite = errors.New("stale write: transaction conflict retries exhausted")
)

// casRetries is how many times a conflicted read-modify-write transaction
// is replayed before surfacing ErrStaleWrite.
const casRetries = 3

// closeTimeout bounds Close during shutdown so a wedged compaction cannot
// stall the whole process exit.
const closeTimeout = 30 * time.Second

// Key prefixes for the five collections and the three secondary indexes.
// Index keys embed zero-padded sort fields so Badger's lexicographic
// iteration yields scheduling order directly.
const (
	videoKeyPrefix       = "video:"
	videoScanKeyPrefix   = "video_scan:"
	videoTierKeyPrefix   = "video_tier:"
	channelKeyPrefix     = "channel:"
	channelScanKeyPrefix = "channel_scan:"
	keywordKeyPrefix     = "keyword:"
	snapshotKeyPrefix    = "snapshot:"
	quotaKeyPrefix       = "quota:"
)

// Store owns the embedded BadgerDB and exposes one repository per
// collection. All repositories share the same DB; cross-collection
// consistency is not needed anywhere in the pipeline.
type Store struct {
	db  *badger.DB
	cfg config.StoreConfig

	Videos    *VideoRepo
	Channels  *ChannelRepo
	Keywords  *KeywordRepo
	Snapshots *SnapshotRepo
	Quota     *QuotaRepo
}

// Open opens (or creates) the BadgerDB at cfg.Path, or an in-memory
// instance when cfg.InMemory is set.
func Open(cfg config.StoreConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &Store{db: db, cfg: cfg}
	s.Videos = &VideoRepo{db: db}
	s.Channels = &ChannelRepo{db: db}
	s.Keywords = &KeywordRepo{db: db}
	s.Snapshots = &SnapshotRepo{db: db, ttl: cfg.SnapshotTTL()}
	s.Quota = &QuotaRepo{db: db}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Store opened")
	return s, nil
}

// DB exposes the underlying BadgerDB for components that need raw access
// (the GC loop and tests).
func (s *Store) DB() *badger.DB {
	return s.db
}

// Close flushes and closes the database, giving up after closeTimeout.
func (s *Store) Close() error {
	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close store: %w", err)
		}
		logging.Info().Msg("Store closed")
		return nil
	case <-time.After(closeTimeout):
		return fmt.Errorf("close store: timed out after %s", closeTimeout)
	}
}

// GC returns the value-log garbage collection service for this store.
func (s *Store) GC() *GC {
	return &GC{
		db:       s.db,
		interval: s.cfg.GCInterval,
		ratio:    s.cfg.GCDiscardRatio,
		inMemory: s.cfg.InMemory,
	}
}

// timeKey encodes an instant as a fixed-width decimal of UTC unix
// seconds, so index keys sort chronologically. Zero and pre-epoch times
// encode as all zeros and sort first.
func timeKey(t time.Time) string {
	unix := t.UTC().Unix()
	if unix < 0 {
		unix = 0
	}
	return fmt.Sprintf("%010d", unix)
}

// runUpdate wraps db.Update with store metrics.
func runUpdate(db *badger.DB, operation, entity string, fn func(txn *badger.Txn) error) error {
	start := time.Now()
	err := db.Update(fn)
	metrics.RecordStoreOp(operation, entity, time.Since(start), err)
	return err
}

// runView wraps db.View with store metrics.
func runView(db *badger.DB, operation, entity string, fn func(txn *badger.Txn) error) error {
	start := time.Now()
	err := db.View(fn)
	metrics.RecordStoreOp(operation, entity, time.Since(start), err)
	return err
}
