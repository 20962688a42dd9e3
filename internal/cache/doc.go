// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

/*
Package cache provides a generic, thread-safe LRU map with TTL expiry.

The chat reconciler uses it to remember which server identifier confirmed
each local message identifier, so that late lookups (a retry issued after
the optimistic entry was already replaced, or a history merge that arrives
after the push echo) still resolve. Entries expire after the TTL and the
least recently used entry is evicted when the capacity is reached.

# Usage Example

	ids := cache.NewLRU[string](1000, 10*time.Minute)
	ids.Add("temp_1700000000000", "srv-1")

	if serverID, ok := ids.Get("temp_1700000000000"); ok {
	    fmt.Println(serverID)
	}

# Thread Safety

All methods are safe for concurrent use. A single mutex guards the map and
the recency list; Get reorders the list and therefore takes the write lock.
*/
package cache
