// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/excubitor/internal/models"
)

// SnapshotRepo persists append-only view count samples with a retention
// TTL. Keys are snapshot:<video_id>:<second timestamp>, so duplicate
// deliveries within the same second collapse to one row and per-video
// range scans come back in chronological order.
type SnapshotRepo struct {
	db  *badger.DB
	ttl time.Duration
}

func snapshotKey(videoID string, ts time.Time) []byte {
	return []byte(snapshotKeyPrefix + videoID + ":" + timeKey(ts))
}

// Record writes one sample. Rows expire ttl after the write.
func (r *SnapshotRepo) Record(ctx context.Context, snap *models.ViewSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", snap.VideoID, err)
	}
	return runUpdate(r.db, "record", "snapshot", func(txn *badger.Txn) error {
		entry := badger.NewEntry(snapshotKey(snap.VideoID, snap.Timestamp), data)
		if r.ttl > 0 {
			entry = entry.WithTTL(r.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// ListSince returns a video's samples taken at or after since, oldest
// first.
func (r *SnapshotRepo) ListSince(ctx context.Context, videoID string, since time.Time) ([]models.ViewSnapshot, error) {
	var snaps []models.ViewSnapshot
	err := runView(r.db, "list_since", "snapshot", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(snapshotKeyPrefix + videoID + ":")
		seek := snapshotKey(videoID, since)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			var s models.ViewSnapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return err
			}
			snaps = append(snaps, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// Count returns the number of live samples for a video.
func (r *SnapshotRepo) Count(ctx context.Context, videoID string) (int, error) {
	count := 0
	err := runView(r.db, "count", "snapshot", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(snapshotKeyPrefix + videoID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
