// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered with the default registry through promauto and
exposed by the API server at /metrics:

	curl http://127.0.0.1:8787/metrics

# Overview

The package provides metrics for:
  - Push channel state, reconnect attempts, close codes and heartbeats
  - Resource registry fetch latency, fetch errors and fan-out deliveries
  - Polling ticks and active polling loops
  - Chat reconciliation outcomes and confirmed-write fallbacks
  - Circuit breaker state transitions for the REST collaborator
  - HTTP request latency and WebSocket hub connections

# Usage

Components call the Record* helpers rather than touching collectors directly:

	metrics.RecordFetch("orders", time.Since(start), err)
	metrics.RecordReconcile("duplicate")
*/
package metrics
