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

// ChannelRepo persists channel profiles plus one scheduling index:
//
//	channel_scan:<tier rank>:<next_scan_at>:<id>
//
// Iterating the index yields channels in tier order (PLATINUM first) and
// oldest next_scan_at within a tier. IGNORE channels carry a zero
// next_scan_at and are never indexed.
type ChannelRepo struct {
	db *badger.DB
}

func channelKey(id string) []byte {
	return []byte(channelKeyPrefix + id)
}

func channelScanKey(c *models.ChannelProfile) []byte {
	return []byte(fmt.Sprintf("%s%d:%s:%s", channelScanKeyPrefix, c.Tier.Rank(), timeKey(c.NextScanAt), c.ChannelID))
}

// Get returns the profile for the given channel id, or ErrNotFound.
func (r *ChannelRepo) Get(ctx context.Context, channelID string) (*models.ChannelProfile, error) {
	var profile *models.ChannelProfile
	err := runView(r.db, "get", "channel", func(txn *badger.Txn) error {
		p, err := getChannelTxn(txn, channelID)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// GetOrCreate returns the existing profile or atomically creates one
// with the given defaults. Racing creators converge on a single row.
func (r *ChannelRepo) GetOrCreate(ctx context.Context, defaults *models.ChannelProfile) (*models.ChannelProfile, error) {
	for attempt := 0; ; attempt++ {
		var profile *models.ChannelProfile

		err := runUpdate(r.db, "get_or_create", "channel", func(txn *badger.Txn) error {
			existing, err := getChannelTxn(txn, defaults.ChannelID)
			if err == nil {
				profile = existing
				return nil
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
			profile = defaults
			return writeChannelTxn(txn, defaults, nil)
		})
		switch {
		case err == nil:
			return profile, nil
		case errors.Is(err, badger.ErrConflict) && attempt < casRetries:
			metrics.StoreTxnConflicts.Inc()
			continue
		default:
			return nil, err
		}
	}
}

// Update applies mutate to the stored profile inside one transaction,
// replaying on conflict like VideoRepo.Update.
func (r *ChannelRepo) Update(ctx context.Context, channelID string, mutate func(*models.ChannelProfile) error) (*models.ChannelProfile, error) {
	var updated *models.ChannelProfile

	for attempt := 0; ; attempt++ {
		err := runUpdate(r.db, "update", "channel", func(txn *badger.Txn) error {
			profile, err := getChannelTxn(txn, channelID)
			if err != nil {
				return err
			}
			old := *profile
			if err := mutate(profile); err != nil {
				return err
			}
			updated = profile
			return writeChannelTxn(txn, profile, &old)
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
				Str("channel_id", channelID).
				Int("attempts", attempt+1).
				Msg("Channel update abandoned after conflict retries")
			return nil, fmt.Errorf("channel %s: %w", channelID, ErrStaleWrite)
		}
	}
}

// DueForScan returns up to limit channels whose next_scan_at is at or
// before now, best tier first, oldest next_scan_at within a tier.
func (r *ChannelRepo) DueForScan(ctx context.Context, now time.Time, limit int) ([]*models.ChannelProfile, error) {
	if limit < 1 {
		return nil, nil
	}
	nowKey := timeKey(now)

	var due []*models.ChannelProfile
	err := runView(r.db, "due_scan", "channel", func(txn *badger.Txn) error {
		// Tier ranks segment the key space, so each rank needs its own
		// early-stopped pass. IGNORE (rank 4) is never indexed.
		for rank := models.ChannelTierPlatinum.Rank(); rank <= models.ChannelTierBronze.Rank(); rank++ {
			rankPrefix := fmt.Sprintf("%s%d:", channelScanKeyPrefix, rank)
			cutoff := rankPrefix + nowKey + ";"

			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = true
			it := txn.NewIterator(opts)

			prefix := []byte(rankPrefix)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if len(due) >= limit {
					it.Close()
					return nil
				}
				if string(it.Item().Key()) >= cutoff {
					break
				}
				var channelID string
				if err := it.Item().Value(func(val []byte) error {
					channelID = string(val)
					return nil
				}); err != nil {
					it.Close()
					return err
				}
				profile, err := getChannelTxn(txn, channelID)
				if errors.Is(err, ErrNotFound) {
					continue
				}
				if err != nil {
					it.Close()
					return err
				}
				due = append(due, profile)
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return due, nil
}

// TierCounts returns the number of channels per tier, IGNORE included.
func (r *ChannelRepo) TierCounts(ctx context.Context) (map[models.ChannelTier]int64, error) {
	counts := make(map[models.ChannelTier]int64)
	err := runView(r.db, "tier_counts", "channel", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(channelKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var profile models.ChannelProfile
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &profile)
			}); err != nil {
				return err
			}
			counts[profile.Tier]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func getChannelTxn(txn *badger.Txn, channelID string) (*models.ChannelProfile, error) {
	item, err := txn.Get(channelKey(channelID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("channel %s: %w", channelID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get channel %s: %w", channelID, err)
	}

	var profile models.ChannelProfile
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &profile)
	}); err != nil {
		return nil, fmt.Errorf("decode channel %s: %w", channelID, err)
	}
	return &profile, nil
}

func writeChannelTxn(txn *badger.Txn, profile, old *models.ChannelProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal channel %s: %w", profile.ChannelID, err)
	}
	if err := txn.Set(channelKey(profile.ChannelID), data); err != nil {
		return fmt.Errorf("set channel %s: %w", profile.ChannelID, err)
	}

	indexed := !profile.NextScanAt.IsZero()
	newScan := channelScanKey(profile)

	if old != nil && !old.NextScanAt.IsZero() {
		if oldScan := channelScanKey(old); !indexed || string(oldScan) != string(newScan) {
			if err := txn.Delete(oldScan); err != nil {
				return fmt.Errorf("drop scan index %s: %w", profile.ChannelID, err)
			}
		}
	}
	if indexed {
		if err := txn.Set(newScan, []byte(profile.ChannelID)); err != nil {
			return fmt.Errorf("set scan index %s: %w", profile.ChannelID, err)
		}
	}
	return nil
}
