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

	"github.com/tomtom215/excubitor/internal/models"
)

// QuotaRepo persists one spend row per (ledger, UTC day). It satisfies
// the ledger's Persister interface; a missing day reads back as
// (nil, nil) so a fresh day starts at zero without error handling at
// the call site.
type QuotaRepo struct {
	db *badger.DB
}

func quotaKey(ledger, date string) []byte {
	return []byte(quotaKeyPrefix + ledger + ":" + date)
}

// SaveQuotaUsage upserts the day row. Last writer wins; the ledger
// serializes its own writes under its mutex.
func (r *QuotaRepo) SaveQuotaUsage(ctx context.Context, usage *models.QuotaUsage) error {
	data, err := json.Marshal(usage)
	if err != nil {
		return fmt.Errorf("marshal quota usage %s/%s: %w", usage.Ledger, usage.Date, err)
	}
	return runUpdate(r.db, "save", "quota", func(txn *badger.Txn) error {
		return txn.Set(quotaKey(usage.Ledger, usage.Date), data)
	})
}

// GetQuotaUsage returns the day row, or (nil, nil) when absent.
func (r *QuotaRepo) GetQuotaUsage(ctx context.Context, ledger, date string) (*models.QuotaUsage, error) {
	var usage *models.QuotaUsage
	err := runView(r.db, "get", "quota", func(txn *badger.Txn) error {
		item, err := txn.Get(quotaKey(ledger, date))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get quota usage %s/%s: %w", ledger, date, err)
		}
		var u models.QuotaUsage
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &u)
		}); err != nil {
			return fmt.Errorf("decode quota usage %s/%s: %w", ledger, date, err)
		}
		usage = &u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

// History returns up to limit day rows for one ledger, newest first.
func (r *QuotaRepo) History(ctx context.Context, ledger string, limit int) ([]*models.QuotaUsage, error) {
	var rows []*models.QuotaUsage
	err := runView(r.db, "history", "quota", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(quotaKeyPrefix + ledger + ":")
		// Reverse iteration seeks to the last possible key under the
		// prefix; 0xFF sorts after any date byte.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(rows) >= limit {
				return nil
			}
			var u models.QuotaUsage
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &u)
			}); err != nil {
				return err
			}
			rows = append(rows, &u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
