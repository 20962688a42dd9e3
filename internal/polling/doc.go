// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

// Package polling refreshes registry resources on a fixed interval.
//
// Each polled resource gets one loop that fetches immediately and then on
// every tick. The loop handle is attached to the registry entry so that the
// registry can stop it when the last listener unsubscribes. A failed fetch
// is recorded on the entry by the registry; the loop keeps its schedule and
// does not retry early.
package polling
