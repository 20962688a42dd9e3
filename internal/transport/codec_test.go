// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package transport

import (
	"testing"
	"time"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, f Frame)
	}{
		{
			name:  "chat message",
			input: `{"type":"chat_message","message":{"id":"srv-1","room_id":42,"content":"hello","sender_type":"customer"}}`,
			check: func(t *testing.T, f Frame) {
				m, ok := f.(ChatMessageFrame)
				if !ok {
					t.Fatalf("got %T", f)
				}
				checkStringEqual(t, "id", string(m.Message.ID), "srv-1")
				checkStringEqual(t, "room_id", string(m.Message.RoomID), "42")
				checkStringEqual(t, "content", m.Message.Content, "hello")
			},
		},
		{
			name:  "room status",
			input: `{"type":"room_status","rooms":[{"id":1,"status":"open"},{"id":2}],"connection_status":"connected"}`,
			check: func(t *testing.T, f Frame) {
				r, ok := f.(RoomStatusFrame)
				if !ok {
					t.Fatalf("got %T", f)
				}
				checkStringEqual(t, "type", r.FrameType(), TypeRoomStatus)
				checkIntEqual(t, "rooms", len(r.Rooms), 2)
				checkStringEqual(t, "connection_status", r.ConnectionStatus, "connected")
			},
		},
		{
			name:  "room list",
			input: `{"type":"room_list","rooms":[]}`,
			check: func(t *testing.T, f Frame) {
				if f.FrameType() != TypeRoomList {
					t.Errorf("type = %s", f.FrameType())
				}
			},
		},
		{
			name:  "error with string message",
			input: `{"type":"error","message":"rate limited"}`,
			check: func(t *testing.T, f Frame) {
				e, ok := f.(ErrorFrame)
				if !ok {
					t.Fatalf("got %T", f)
				}
				checkStringEqual(t, "message", e.Message, "rate limited")
			},
		},
		{
			name:  "error with object message",
			input: `{"type":"error","message":{"message":"bad room"}}`,
			check: func(t *testing.T, f Frame) {
				checkStringEqual(t, "message", f.(ErrorFrame).Message, "bad room")
			},
		},
		{
			name:  "heartbeat with rfc3339 timestamp",
			input: `{"type":"heartbeat","timestamp":"2023-11-14T22:13:20Z"}`,
			check: func(t *testing.T, f Frame) {
				hb := f.(HeartbeatFrame)
				if hb.Timestamp != 1700000000000 {
					t.Errorf("timestamp = %d", hb.Timestamp)
				}
			},
		},
		{
			name:  "unknown type",
			input: `{"type":"typing","user":"x"}`,
			check: func(t *testing.T, f Frame) {
				u, ok := f.(UnknownFrame)
				if !ok {
					t.Fatalf("got %T", f)
				}
				checkStringEqual(t, "type", u.Type, "typing")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeFrame([]byte(tt.input))
			if err != nil {
				t.Fatalf("DecodeFrame error: %v", err)
			}
			tt.check(t, f)
		})
	}
}

func TestDecodeFrame_Errors(t *testing.T) {
	for _, input := range []string{
		`not json`,
		`{"rooms":[]}`,
		`{"type":"chat_message"}`,
		`{"type":"chat_message","message":"text"}`,
	} {
		if _, err := DecodeFrame([]byte(input)); err == nil {
			t.Errorf("DecodeFrame(%s) should fail", input)
		}
	}
}

func TestEncodeFrame(t *testing.T) {
	data, err := EncodeFrame(NewHeartbeat(time.UnixMilli(1700000000000)))
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	checkStringEqual(t, "heartbeat", string(data), `{"type":"heartbeat","timestamp":1700000000000}`)

	data, err = EncodeFrame(NewChatMessage("hello", ""))
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	checkStringEqual(t, "chat", string(data), `{"type":"chat_message","content":"hello"}`)
}

func TestClassify(t *testing.T) {
	tests := map[int]CloseClass{
		1000: CloseNormal,
		1001: CloseNormal,
		4401: CloseTerminal,
		4403: CloseTerminal,
		4404: CloseTerminal,
		1011: CloseReconnect,
		1006: CloseReconnect,
		4999: CloseReconnect,
	}
	for code, want := range tests {
		if got := Classify(code); got != want {
			t.Errorf("Classify(%d) = %v, want %v", code, got, want)
		}
	}
}
