// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package syncerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestFromCloseCode(t *testing.T) {
	tests := []struct {
		code      int
		wantNil   bool
		wantKind  Kind
		terminal  bool
		retryable bool
	}{
		{code: 1000, wantNil: true},
		{code: 1001, wantNil: true},
		{code: 4401, wantKind: Unauthorized, terminal: true},
		{code: 4403, wantKind: Forbidden, terminal: true},
		{code: 4404, wantKind: RoomNotFound, terminal: true},
		{code: 1011, wantKind: TransientTransport, retryable: true},
		{code: 1006, wantKind: TransientTransport, retryable: true},
		{code: 4000, wantKind: TransientTransport, retryable: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("code_%d", tt.code), func(t *testing.T) {
			err := FromCloseCode("chatroom:42", tt.code, "reason")
			if tt.wantNil {
				if err != nil {
					t.Fatalf("FromCloseCode(%d) = %v, want nil", tt.code, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("FromCloseCode(%d) = nil", tt.code)
			}
			if err.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", err.Kind, tt.wantKind)
			}
			if err.Terminal() != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", err.Terminal(), tt.terminal)
			}
			if err.Retryable() != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", err.Retryable(), tt.retryable)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %d, want %d", err.Code, tt.code)
			}
		})
	}
}

func TestErrorsIsMatchesKindSentinel(t *testing.T) {
	err := fmt.Errorf("connect: %w", New(Unauthorized, "open", "chatroom:1", errors.New("no token")))

	if !errors.Is(err, ErrUnauthorized) {
		t.Error("errors.Is(err, ErrUnauthorized) = false, want true")
	}
	if errors.Is(err, ErrForbidden) {
		t.Error("errors.Is(err, ErrForbidden) = true, want false")
	}
	if KindOf(err) != Unauthorized {
		t.Errorf("KindOf = %v, want Unauthorized", KindOf(err))
	}
	if !IsTerminal(err) {
		t.Error("IsTerminal = false, want true")
	}
}

func TestUserMessageNeverExposesCodes(t *testing.T) {
	err := FromCloseCode("chatroom:1", 4401, "token expired")
	msg := UserMessage(err)
	if msg != "Your session has expired. Please sign in again." {
		t.Errorf("UserMessage = %q", msg)
	}
	if UserMessage(nil) != "" {
		t.Error("UserMessage(nil) should be empty")
	}
	if UserMessage(errors.New("boom")) != KindUnknown.UserMessage() {
		t.Error("unclassified errors should get the generic message")
	}
}

func TestErrorString(t *testing.T) {
	err := &Error{Kind: TransientTransport, Op: "close", Resource: "chatroom:7", Code: 1011, Err: errors.New("server restart")}
	want := "close chatroom:7: transient_transport (code 1011): server restart"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err.Unwrap(), err.Err) {
		t.Error("Unwrap should return the cause")
	}
}
