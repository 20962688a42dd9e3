// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

// Package snapshot persists the last successful fetch of each resource so a
// restarted process can serve cached data before its first fetch completes.
package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Record is the persisted form of a resource's cached data.
type Record struct {
	Items       []json.RawMessage `json:"items"`
	LastFetchAt time.Time         `json:"last_fetch_at"`
}

// Store persists snapshot records keyed by resource identifier.
type Store interface {
	// Load returns the record and whether one exists.
	Load(ctx context.Context, resourceID string) (Record, bool, error)
	Save(ctx context.Context, resourceID string, rec Record) error
	Delete(ctx context.Context, resourceID string) error
	Close() error
}

// MemoryStore is a process-local Store, used when no snapshot path is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, resourceID string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[resourceID]
	return rec, ok, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, resourceID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[resourceID] = rec
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, resourceID)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
