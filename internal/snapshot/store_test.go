// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()

	mem, err := OpenBadger("", true)
	if err != nil {
		t.Fatalf("OpenBadger in-memory: %v", err)
	}
	disk, err := OpenBadger(t.TempDir(), false)
	if err != nil {
		t.Fatalf("OpenBadger on disk: %v", err)
	}
	t.Cleanup(func() {
		_ = mem.Close()
		_ = disk.Close()
	})

	return map[string]Store{
		"memory":          NewMemoryStore(),
		"badger-inmemory": mem,
		"badger-disk":     disk,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fetchedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := store.Load(ctx, "orders"); err != nil || ok {
				t.Fatalf("Load(empty) = ok:%v err:%v, want miss", ok, err)
			}

			rec := Record{
				Items:       []json.RawMessage{json.RawMessage(`{"id":1}`), json.RawMessage(`{"id":2}`)},
				LastFetchAt: fetchedAt,
			}
			if err := store.Save(ctx, "orders", rec); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, ok, err := store.Load(ctx, "orders")
			if err != nil || !ok {
				t.Fatalf("Load = ok:%v err:%v", ok, err)
			}
			if len(got.Items) != 2 || string(got.Items[1]) != `{"id":2}` {
				t.Errorf("Items = %s", got.Items)
			}
			if !got.LastFetchAt.Equal(fetchedAt) {
				t.Errorf("LastFetchAt = %v, want %v", got.LastFetchAt, fetchedAt)
			}

			if err := store.Delete(ctx, "orders"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := store.Delete(ctx, "orders"); err != nil {
				t.Fatalf("Delete missing: %v", err)
			}
			if _, ok, _ := store.Load(ctx, "orders"); ok {
				t.Error("record still present after Delete")
			}
		})
	}
}

func TestBadgerStore_Keys(t *testing.T) {
	store, err := OpenBadger("", true)
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for _, id := range []string{"orders", "chatroom:42"} {
		if err := store.Save(ctx, id, Record{}); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Keys = %v, want 2 entries", keys)
	}
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := OpenBadger(dir, false)
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	if err := store.Save(ctx, "inquiries", Record{Items: []json.RawMessage{json.RawMessage(`{"id":"q1"}`)}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenBadger(dir, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	rec, ok, err := reopened.Load(ctx, "inquiries")
	if err != nil || !ok || len(rec.Items) != 1 {
		t.Fatalf("Load after reopen = %+v ok:%v err:%v", rec, ok, err)
	}
}
