// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

// Package eventbus delivers named events (chat messages, room status,
// server errors, connection changes) to in-process subscribers over a
// watermill GoChannel. Payloads travel as JSON so subscribers decode only
// what they need.
package eventbus
