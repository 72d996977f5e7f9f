// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
	"github.com/tomtom215/excubitor/internal/models"
)

// KeywordRepo persists per-keyword search statistics, keyed by the
// keyword text itself. The population is small (catalog-derived), so
// scheduling queries load everything and sort in memory upstream.
type KeywordRepo struct {
	db *badger.DB
}

func keywordKey(keyword string) []byte {
	return []byte(keywordKeyPrefix + keyword)
}

// Get returns the stats row for a keyword, or ErrNotFound.
func (r *KeywordRepo) Get(ctx context.Context, keyword string) (*models.KeywordStat, error) {
	var stat *models.KeywordStat
	err := runView(r.db, "get", "keyword", func(txn *badger.Txn) error {
		item, err := txn.Get(keywordKey(keyword))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("keyword %q: %w", keyword, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get keyword %q: %w", keyword, err)
		}
		var s models.KeywordStat
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		}); err != nil {
			return fmt.Errorf("decode keyword %q: %w", keyword, err)
		}
		stat = &s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stat, nil
}

// Save writes a stats row, replacing any previous value.
func (r *KeywordRepo) Save(ctx context.Context, stat *models.KeywordStat) error {
	data, err := json.Marshal(stat)
	if err != nil {
		return fmt.Errorf("marshal keyword %q: %w", stat.Keyword, err)
	}
	return runUpdate(r.db, "save", "keyword", func(txn *badger.Txn) error {
		return txn.Set(keywordKey(stat.Keyword), data)
	})
}

// CreateIfAbsent writes the row only when the keyword is new, so catalog
// re-seeding on restart never resets accumulated statistics. Returns
// true when a row was written.
func (r *KeywordRepo) CreateIfAbsent(ctx context.Context, stat *models.KeywordStat) (bool, error) {
	created := false
	err := runUpdate(r.db, "create", "keyword", func(txn *badger.Txn) error {
		_, err := txn.Get(keywordKey(stat.Keyword))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get keyword %q: %w", stat.Keyword, err)
		}
		data, err := json.Marshal(stat)
		if err != nil {
			return fmt.Errorf("marshal keyword %q: %w", stat.Keyword, err)
		}
		created = true
		return txn.Set(keywordKey(stat.Keyword), data)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// Update applies mutate to the stored row inside one transaction,
// replaying on conflict like ChannelRepo.Update.
func (r *KeywordRepo) Update(ctx context.Context, keyword string, mutate func(*models.KeywordStat) error) (*models.KeywordStat, error) {
	var updated *models.KeywordStat

	for attempt := 0; ; attempt++ {
		err := runUpdate(r.db, "update", "keyword", func(txn *badger.Txn) error {
			item, err := txn.Get(keywordKey(keyword))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("keyword %q: %w", keyword, ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("get keyword %q: %w", keyword, err)
			}
			var stat models.KeywordStat
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stat)
			}); err != nil {
				return fmt.Errorf("decode keyword %q: %w", keyword, err)
			}
			if err := mutate(&stat); err != nil {
				return err
			}
			data, err := json.Marshal(&stat)
			if err != nil {
				return fmt.Errorf("marshal keyword %q: %w", keyword, err)
			}
			updated = &stat
			return txn.Set(keywordKey(keyword), data)
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
				Str("keyword", keyword).
				Int("attempts", attempt+1).
				Msg("Keyword update abandoned after conflict retries")
			return nil, fmt.Errorf("keyword %q: %w", keyword, ErrStaleWrite)
		}
	}
}

// All returns every stats row, in key (keyword text) order.
func (r *KeywordRepo) All(ctx context.Context) ([]*models.KeywordStat, error) {
	var stats []*models.KeywordStat
	err := runView(r.db, "all", "keyword", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keywordKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var s models.KeywordStat
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return err
			}
			stats = append(stats, &s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
