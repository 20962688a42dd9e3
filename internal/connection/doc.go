// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

// Package connection keeps a push channel alive: a bounded fixed-delay
// reconnection policy, a heartbeat monitor attached only while Open, and the
// Connection state machine that ties them to a transport.Channel.
package connection
