// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

/*
Package transport implements a single push channel to one storefront endpoint.

A Channel wraps one gorilla/websocket connection. Open checks the credential
locally, dials, presents the credential in an auth frame and only then reports
Open. Everything the connection observes is delivered through a typed event
stream:

	ch, err := transport.Open(ctx, transport.Endpoint{Resource: "chatroom:42", URL: u}, token, opts)
	for ev := range ch.Events() {
		switch ev := ev.(type) {
		case transport.Opened:
		case transport.MessageReceived:
			// ev.Frame is ChatMessageFrame, RoomStatusFrame, ErrorFrame, HeartbeatFrame or UnknownFrame
		case transport.TransportError:
		case transport.Closed:
			// last event; ev.Code drives reconnection via Classify
		}
	}

Close codes 1000/1001 are normal, 4401/4403/4404 are terminal and every
other code is eligible for reconnection. Reconnection and heartbeats live in
the connection package; this package never reopens a channel on its own.
*/
package transport
