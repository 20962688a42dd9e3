// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLRU_BasicOperations(t *testing.T) {
	c := NewLRU[string](3, time.Minute)

	c.Add("temp_1", "srv-1")
	c.Add("temp_2", "srv-2")

	if v, ok := c.Get("temp_1"); !ok || v != "srv-1" {
		t.Errorf("Get(temp_1) = %q, %v", v, ok)
	}
	if _, ok := c.Get("temp_9"); ok {
		t.Error("Get(temp_9) found a missing key")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	c.Add("temp_1", "srv-10")
	if v, _ := c.Get("temp_1"); v != "srv-10" {
		t.Errorf("updated value = %q, want srv-10", v)
	}

	if !c.Remove("temp_2") {
		t.Error("Remove(temp_2) = false")
	}
	if c.Remove("temp_2") {
		t.Error("second Remove(temp_2) = true")
	}

	hits, misses, size := c.Stats()
	if hits != 2 || misses != 1 || size != 1 {
		t.Errorf("Stats() = %d, %d, %d; want 2, 1, 1", hits, misses, size)
	}
}

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU[int](3, time.Minute)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	// Touch a so b becomes least recently used.
	c.Get("a")
	c.Add("d", 4)

	if c.Contains("b") {
		t.Error("expected b to be evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if !c.Contains(k) {
			t.Errorf("expected %s to be present", k)
		}
	}
}

func TestLRU_TTL(t *testing.T) {
	clock := &manualClock{now: time.Unix(1700000000, 0)}
	c := NewLRU[string](10, time.Minute).WithClock(clock.Now)

	c.Add("a", "x")
	c.Add("b", "y")
	clock.Advance(30 * time.Second)
	c.Add("b", "y") // refreshes b's TTL

	clock.Advance(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to have expired")
	}
	if !c.Contains("b") {
		t.Error("expected b to survive after its TTL was refreshed")
	}

	clock.Advance(time.Minute)
	if removed := c.CleanupExpired(); removed != 1 {
		t.Errorf("CleanupExpired() = %d, want 1", removed)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestLRU_Defaults(t *testing.T) {
	c := NewLRU[int](0, 0)
	if c.capacity != DefaultCapacity || c.ttl != DefaultTTL {
		t.Errorf("defaults = %d, %v", c.capacity, c.ttl)
	}
	c.Add("k", 1)
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[int](100, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%150)
				c.Add(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 100 {
		t.Errorf("Len() = %d exceeds capacity", c.Len())
	}
}
