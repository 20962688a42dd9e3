// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

/*
Package registry keeps one cached entry per resource identifier and fans
changes out to the listeners subscribed to it.

An entry holds the last successfully fetched items, the time of the last
fetch attempt, the last fetch error and the set of listeners. A fetch
failure keeps the previous items and stamps the attempt time, so listeners
see the error next to the data they already have.

# Cache-first subscribe

A new subscriber to a fresh entry (last fetch within the stale threshold,
5 seconds by default) receives the cached items without a network call.
A subscriber to a missing or stale entry triggers one background fetch;
concurrent triggers for the same resource share a single call.

# Delivery

Each entry has its own delivery queue drained by one goroutine at a time,
so two fan-outs for the same resource never interleave. Listeners run
outside the registry lock and may subscribe or unsubscribe from inside a
callback. Membership is checked when the fan-out runs: a listener removed
before then is not called. A panicking listener is logged and skipped; the
remaining listeners still run.

# Usage

	reg := registry.New(registry.Options{})
	defer reg.Close()

	h := reg.Subscribe("orders", fetchOrders, registry.Listener{
		OnData:  func(items []json.RawMessage) { render(items) },
		OnError: func(err error) { showBanner(err) },
	})
	defer reg.Unsubscribe(h)
*/
package registry
