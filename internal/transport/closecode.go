// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package transport

import "github.com/gorilla/websocket"

// Close codes with reserved meaning on the storefront channel.
const (
	CodeNormal        = websocket.CloseNormalClosure    // 1000
	CodeGoingAway     = websocket.CloseGoingAway        // 1001
	CodeAbnormal      = websocket.CloseAbnormalClosure  // 1006, never sent on the wire
	CodeInternalError = websocket.CloseInternalServerErr // 1011
	CodeAuthInvalid   = 4401
	CodeForbidden     = 4403
	CodeRoomNotFound  = 4404
)

// CloseClass is the reconnection consequence of a close code.
type CloseClass int

const (
	// CloseNormal suppresses reconnection.
	CloseNormal CloseClass = iota
	// CloseTerminal enters Failed with no reconnection.
	CloseTerminal
	// CloseReconnect is eligible for reconnection.
	CloseReconnect
)

// String returns a log label for the class.
func (c CloseClass) String() string {
	switch c {
	case CloseNormal:
		return "normal"
	case CloseTerminal:
		return "terminal"
	default:
		return "reconnect"
	}
}

// Classify maps a close code to its reconnection consequence.
// Anything not explicitly normal or terminal is reconnect-eligible.
func Classify(code int) CloseClass {
	switch code {
	case CodeNormal, CodeGoingAway:
		return CloseNormal
	case CodeAuthInvalid, CodeForbidden, CodeRoomNotFound:
		return CloseTerminal
	default:
		return CloseReconnect
	}
}
