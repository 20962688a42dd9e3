// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

/*
Package services provides suture.Service wrappers for livesync components.

Each wrapper implements suture's Serve(ctx) error contract, returns ctx.Err()
on a clean shutdown and implements fmt.Stringer so supervisor logs name it.

Available services:

  - HTTPServerService: runs *http.Server and shuts it down gracefully
  - NamedService: names a component that already has Serve (scheduler,
    subscription client, hub)
  - SweepService: periodic registry.SweepIdle
  - ForwarderService: forwards named event bus events to the websocket hub

Example:

	tree.AddSyncService(services.Named("websocket-hub", h))
	tree.AddSyncService(services.NewForwarderService(bus, h,
	    eventbus.ConnectionStatus, eventbus.RoomStatus, eventbus.RoomList))
	tree.AddStoreService(services.NewSweepService(reg, 0, 10*time.Minute))
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
*/
package services
