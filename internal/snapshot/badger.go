// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/livesync/internal/logging"
)

// Key prefix for BadgerDB storage
const snapshotKeyPrefix = "snapshot:"

// BadgerStore implements Store using BadgerDB for durable storage.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a BadgerDB at path. With inMemory set the
// path is ignored and nothing touches disk.
func OpenBadger(path string, inMemory bool) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	logging.Info().Str("path", path).Bool("in_memory", inMemory).Msg("Snapshot store opened")
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already-open database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Load implements Store.
func (s *BadgerStore) Load(_ context.Context, resourceID string) (Record, bool, error) {
	var rec Record
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotKeyPrefix + resourceID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get snapshot: %w", err)
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return Record{}, false, err
	}
	return rec, found, nil
}

// Save implements Store.
func (s *BadgerStore) Save(_ context.Context, resourceID string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(snapshotKeyPrefix+resourceID), data)
	})
}

// Delete implements Store.
func (s *BadgerStore) Delete(_ context.Context, resourceID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(snapshotKeyPrefix + resourceID))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete snapshot: %w", err)
		}
		return nil
	})
}

// Keys returns the resource identifiers with a stored snapshot.
func (s *BadgerStore) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(snapshotKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return keys, nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
