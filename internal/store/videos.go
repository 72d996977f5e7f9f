// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
	"github.com/tomtom215/excubitor/internal/models"
)

// VideoRepo persists Video rows plus two secondary indexes:
//
//	video_scan:<next_scan_at><inverted risk><id>  rescore scheduling order
//	video_tier:<tier>:<id>                        tier lookups and counts
//
// The scan index embeds (100 - current_risk) zero-padded so that rows
// sharing a next_scan_at second iterate highest-risk first.
type VideoRepo struct {
	db *badger.DB
}

func videoKey(id string) []byte {
	return []byte(videoKeyPrefix + id)
}

func videoScanKey(v *models.Video) []byte {
	return []byte(fmt.Sprintf("%s%s:%03d:%s", videoScanKeyPrefix, timeKey(v.NextScanAt), 100-v.CurrentRisk, v.VideoID))
}

func videoTierKey(v *models.Video) []byte {
	return []byte(videoTierKeyPrefix + string(v.RiskTier) + ":" + v.VideoID)
}

// Create persists a newly discovered video and returns the stored row.
//
// Three outcomes:
//   - first sighting: the row is written as given, error nil.
//   - already known, discovered inside dedupeWindow: volatile platform
//     metadata is refreshed in place and ErrDuplicate is returned.
//   - already known, older than dedupeWindow: treated as a re-discovery.
//     Metadata and the match set refresh, everything the analyzer owns
//     (risk, state, history) is preserved, error nil.
//
// InitialRisk and DiscoveredAt never change after the first write.
//
// Two scanners racing on the same first sighting conflict at commit; the
// loser replays, finds the winner's row and takes the duplicate path.
func (r *VideoRepo) Create(ctx context.Context, video *models.Video, dedupeWindow time.Duration) (*models.Video, error) {
	for attempt := 0; ; attempt++ {
		stored := video
		duplicate := false

		err := runUpdate(r.db, "create", "video", func(txn *badger.Txn) error {
			existing, err := getVideoTxn(txn, video.VideoID)
			if errors.Is(err, ErrNotFound) {
				return writeVideoTxn(txn, video, nil)
			}
			if err != nil {
				return err
			}

			old := *existing
			refreshVolatile(existing, video)

			if time.Since(existing.DiscoveredAt) < dedupeWindow {
				duplicate = true
			} else {
				// Re-discovery: the record went through matching again.
				existing.MatchedIPs = video.MatchedIPs
			}

			stored = existing
			return writeVideoTxn(txn, existing, &old)
		})
		switch {
		case err == nil && duplicate:
			return stored, ErrDuplicate
		case err == nil:
			return stored, nil
		case errors.Is(err, badger.ErrConflict) && attempt < casRetries:
			metrics.StoreTxnConflicts.Inc()
			continue
		case errors.Is(err, badger.ErrConflict):
			metrics.StoreTxnConflicts.Inc()
			metrics.StoreStaleWrites.Inc()
			return nil, fmt.Errorf("video %s: %w", video.VideoID, ErrStaleWrite)
		default:
			return nil, err
		}
	}
}

// Get returns the video with the given id, or ErrNotFound.
func (r *VideoRepo) Get(ctx context.Context, videoID string) (*models.Video, error) {
	var video *models.Video
	err := runView(r.db, "get", "video", func(txn *badger.Txn) error {
		v, err := getVideoTxn(txn, videoID)
		if err != nil {
			return err
		}
		video = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return video, nil
}

// Update applies mutate to the stored row inside one transaction and
// rewrites its index entries. A conflicting concurrent writer causes the
// whole read-mutate-write to replay with fresh state, up to casRetries
// times; after that ErrStaleWrite is returned. mutate must therefore be
// a pure function of the row it is handed.
func (r *VideoRepo) Update(ctx context.Context, videoID string, mutate func(*models.Video) error) (*models.Video, error) {
	var updated *models.Video

	for attempt := 0; ; attempt++ {
		err := runUpdate(r.db, "update", "video", func(txn *badger.Txn) error {
			video, err := getVideoTxn(txn, videoID)
			if err != nil {
				return err
			}
			old := *video
			if err := mutate(video); err != nil {
				return err
			}
			updated = video
			return writeVideoTxn(txn, video, &old)
		})
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return nil, err
		}

		metrics.StoreTxnConflicts.Inc()
		if attempt >= casRetries {
			metrics.StoreStaleWrites.Inc()
			logging.Warn().
				Str("video_id", videoID).
				Int("attempts", attempt+1).
				Msg("Video update abandoned after conflict retries")
			return nil, fmt.Errorf("video %s: %w", videoID, ErrStaleWrite)
		}
	}
}

// DueForRescore returns up to limit videos whose next_scan_at is at or
// before now, ordered by next_scan_at ascending then current risk
// descending.
func (r *VideoRepo) DueForRescore(ctx context.Context, now time.Time, limit int) ([]*models.Video, error) {
	if limit < 1 {
		return nil, nil
	}
	cutoff := videoScanKeyPrefix + timeKey(now) + ";" // ';' sorts after ':'

	var due []*models.Video
	err := runView(r.db, "due_scan", "video", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(videoScanKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if len(due) >= limit {
				return nil
			}
			key := string(it.Item().Key())
			if key >= cutoff {
				return nil
			}
			var videoID string
			if err := it.Item().Value(func(val []byte) error {
				videoID = string(val)
				return nil
			}); err != nil {
				return err
			}
			video, err := getVideoTxn(txn, videoID)
			if errors.Is(err, ErrNotFound) {
				continue // dangling index entry
			}
			if err != nil {
				return err
			}
			due = append(due, video)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return due, nil
}

// ByTier returns up to limit videos currently in the given risk tier.
// Order is by video id; the tier index carries no schedule.
func (r *VideoRepo) ByTier(ctx context.Context, tier models.RiskTier, limit int) ([]*models.Video, error) {
	if limit < 1 {
		return nil, nil
	}

	var videos []*models.Video
	err := runView(r.db, "by_tier", "video", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(videoTierKeyPrefix + string(tier) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if len(videos) >= limit {
				return nil
			}
			var videoID string
			if err := it.Item().Value(func(val []byte) error {
				videoID = string(val)
				return nil
			}); err != nil {
				return err
			}
			video, err := getVideoTxn(txn, videoID)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			videos = append(videos, video)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return videos, nil
}

// TierCounts returns the number of videos per risk tier.
func (r *VideoRepo) TierCounts(ctx context.Context) (map[models.RiskTier]int64, error) {
	counts := make(map[models.RiskTier]int64)
	err := runView(r.db, "tier_counts", "video", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(videoTierKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())[len(videoTierKeyPrefix):]
			for i := 0; i < len(key); i++ {
				if key[i] == ':' {
					counts[models.RiskTier(key[:i])]++
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// getVideoTxn reads and decodes one video inside an open transaction.
func getVideoTxn(txn *badger.Txn, videoID string) (*models.Video, error) {
	item, err := txn.Get(videoKey(videoID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get video %s: %w", videoID, err)
	}

	var video models.Video
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &video)
	}); err != nil {
		return nil, fmt.Errorf("decode video %s: %w", videoID, err)
	}
	return &video, nil
}

// writeVideoTxn writes the row and its index entries, removing the old
// entries when the indexed fields moved. old is nil on first write.
func writeVideoTxn(txn *badger.Txn, video, old *models.Video) error {
	data, err := json.Marshal(video)
	if err != nil {
		return fmt.Errorf("marshal video %s: %w", video.VideoID, err)
	}
	if err := txn.Set(videoKey(video.VideoID), data); err != nil {
		return fmt.Errorf("set video %s: %w", video.VideoID, err)
	}

	newScan := videoScanKey(video)
	newTier := videoTierKey(video)

	if old != nil {
		if oldScan := videoScanKey(old); string(oldScan) != string(newScan) {
			if err := txn.Delete(oldScan); err != nil {
				return fmt.Errorf("drop scan index %s: %w", video.VideoID, err)
			}
		}
		if oldTier := videoTierKey(old); string(oldTier) != string(newTier) {
			if err := txn.Delete(oldTier); err != nil {
				return fmt.Errorf("drop tier index %s: %w", video.VideoID, err)
			}
		}
	}

	if err := txn.Set(newScan, []byte(video.VideoID)); err != nil {
		return fmt.Errorf("set scan index %s: %w", video.VideoID, err)
	}
	if err := txn.Set(newTier, []byte(video.VideoID)); err != nil {
		return fmt.Errorf("set tier index %s: %w", video.VideoID, err)
	}
	return nil
}

// refreshVolatile copies the platform-owned metadata from incoming onto
// existing. Analyzer-owned fields and first-write provenance stay put.
func refreshVolatile(existing, incoming *models.Video) {
	existing.Title = incoming.Title
	existing.Description = incoming.Description
	existing.ChannelTitle = incoming.ChannelTitle
	existing.ViewCount = incoming.ViewCount
	existing.LikeCount = incoming.LikeCount
	existing.CommentCount = incoming.CommentCount
	existing.DurationSeconds = incoming.DurationSeconds
	existing.Tags = incoming.Tags
	existing.ThumbnailURL = incoming.ThumbnailURL
}
