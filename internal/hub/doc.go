// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

/*
Package hub fans resource updates and bus events out to browser UI clients
over websockets.

The Hub owns the client set and runs as a supervised service. Producers call
Broadcast, ResourceUpdate or Event; none of them block. Each Client has a
buffered send channel and its own read and write pumps. A client whose buffer
fills is dropped rather than slowing every other client down.

Frames sent to clients:

	{"type":"resource_update","resource":"orders","data":{"loaded":true,"items":[...]}}
	{"type":"connection_status","data":{...}}
	{"type":"pong","data":null}

Clients may narrow resource updates with:

	{"type":"filter","resources":["orders","chat:room-1"]}

Handler performs the upgrade and origin check; it is mounted by the api
package at /api/v1/ws.
*/
package hub
