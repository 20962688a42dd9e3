// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

// Package syncerr defines the error taxonomy shared by the transport,
// reconnection, registry and chat layers.
//
// Terminal kinds stop all automatic recovery. Retryable kinds are absorbed
// by the reconnection policy or the next poll tick. Every kind carries a
// human-readable UserMessage so consumers never show raw protocol codes.
package syncerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a synchronization failure.
type Kind int

const (
	// KindUnknown is the zero value for unclassified errors.
	KindUnknown Kind = iota
	// ConnectError is a network-level failure to establish the transport.
	ConnectError
	// Unauthorized means the credential is missing, expired or rejected (close 4401).
	Unauthorized
	// Forbidden means the credential is valid but access is denied (close 4403).
	Forbidden
	// RoomNotFound means the target room does not exist (close 4404).
	RoomNotFound
	// TransientTransport is an abnormal closure eligible for reconnection.
	TransientTransport
	// FetchError is a registry or polling fetch failure.
	FetchError
	// SendFailure means a message could not be delivered by channel or fallback write.
	SendFailure
)

// String returns the metric/log label for the kind.
func (k Kind) String() string {
	switch k {
	case ConnectError:
		return "connect_error"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case RoomNotFound:
		return "room_not_found"
	case TransientTransport:
		return "transient_transport"
	case FetchError:
		return "fetch_error"
	case SendFailure:
		return "send_failure"
	default:
		return "unknown"
	}
}

// Terminal reports whether the kind stops automatic recovery.
func (k Kind) Terminal() bool {
	return k == Unauthorized || k == Forbidden || k == RoomNotFound
}

// Retryable reports whether the kind may be retried automatically or on request.
func (k Kind) Retryable() bool {
	switch k {
	case ConnectError, TransientTransport, FetchError, SendFailure:
		return true
	}
	return false
}

// UserMessage returns the text shown to the end user for this kind.
func (k Kind) UserMessage() string {
	switch k {
	case ConnectError:
		return "Unable to connect. Please check your network connection."
	case Unauthorized:
		return "Your session has expired. Please sign in again."
	case Forbidden:
		return "You do not have permission to access this conversation."
	case RoomNotFound:
		return "This conversation is no longer available."
	case TransientTransport:
		return "Connection unavailable. Please try again later."
	case FetchError:
		return "Unable to load the latest data."
	case SendFailure:
		return "Message could not be sent. Please retry."
	default:
		return "Something went wrong."
	}
}

// Kind sentinels for errors.Is. An *Error matches the sentinel of its kind.
var (
	ErrConnect            = &Error{Kind: ConnectError}
	ErrUnauthorized       = &Error{Kind: Unauthorized}
	ErrForbidden          = &Error{Kind: Forbidden}
	ErrRoomNotFound       = &Error{Kind: RoomNotFound}
	ErrTransientTransport = &Error{Kind: TransientTransport}
	ErrFetch              = &Error{Kind: FetchError}
	ErrSendFailure        = &Error{Kind: SendFailure}
)

// Error is a classified synchronization failure.
type Error struct {
	Kind     Kind
	Op       string // operation that failed, e.g. "open", "fetch", "send"
	Resource string // resource identifier, e.g. "orders" or "chatroom:42"
	Code     int    // close code when the error came from a channel closure
	Err      error
}

// New creates a classified error.
func New(kind Kind, op, resource string, err error) *Error {
	return &Error{Kind: kind, Op: op, Resource: resource, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Resource != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(e.Resource)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Code != 0 {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches kind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Resource == "" && t.Err == nil && t.Code == 0 && t.Kind == e.Kind
}

// Terminal reports whether the error stops automatic recovery.
func (e *Error) Terminal() bool { return e.Kind.Terminal() }

// Retryable reports whether the error is retryable.
func (e *Error) Retryable() bool { return e.Kind.Retryable() }

// UserMessage returns the human-readable status for the error.
func (e *Error) UserMessage() string { return e.Kind.UserMessage() }

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// IsTerminal reports whether err is a terminal synchronization error.
func IsTerminal(err error) bool {
	return KindOf(err).Terminal()
}

// UserMessage returns the human-readable status for any error.
// Unclassified errors get a generic message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return KindOf(err).UserMessage()
}

// FromCloseCode maps a channel close code to the taxonomy.
// Normal closures (1000, 1001) return nil.
func FromCloseCode(resource string, code int, reason string) *Error {
	var kind Kind
	switch code {
	case 1000, 1001:
		return nil
	case 4401:
		kind = Unauthorized
	case 4403:
		kind = Forbidden
	case 4404:
		kind = RoomNotFound
	default:
		kind = TransientTransport
	}
	e := &Error{Kind: kind, Op: "close", Resource: resource, Code: code}
	if reason != "" {
		e.Err = errors.New(reason)
	}
	return e
}
