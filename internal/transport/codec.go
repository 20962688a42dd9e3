// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package transport

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/livesync/internal/models"
)

// Frame type tags.
const (
	TypeChatMessage = "chat_message"
	TypeRoomStatus  = "room_status"
	TypeRoomList    = "room_list"
	TypeError       = "error"
	TypeHeartbeat   = "heartbeat"
	TypePong        = "pong"
	TypeAuth        = "auth"
)

// Frame is a decoded inbound frame. The set of implementations is closed:
// ChatMessageFrame, RoomStatusFrame, ErrorFrame, HeartbeatFrame, UnknownFrame.
type Frame interface {
	FrameType() string
	inbound()
}

// ChatMessageFrame carries one server-confirmed chat message.
type ChatMessageFrame struct {
	Message models.Message
}

// RoomStatusFrame carries room_status and room_list frames.
type RoomStatusFrame struct {
	Type             string
	Rooms            []models.Room
	ConnectionStatus string
}

// ErrorFrame is a server-reported error that does not close the channel.
type ErrorFrame struct {
	Message string
}

// HeartbeatFrame is any liveness frame (heartbeat or pong).
type HeartbeatFrame struct {
	Type      string
	Timestamp int64 // milliseconds since epoch as sent by the remote; 0 if absent
}

// UnknownFrame is a well-formed frame with an unrecognized type.
type UnknownFrame struct {
	Type string
	Raw  json.RawMessage
}

func (ChatMessageFrame) FrameType() string  { return TypeChatMessage }
func (f RoomStatusFrame) FrameType() string { return f.Type }
func (ErrorFrame) FrameType() string        { return TypeError }
func (f HeartbeatFrame) FrameType() string  { return f.Type }
func (f UnknownFrame) FrameType() string    { return f.Type }

func (ChatMessageFrame) inbound() {}
func (RoomStatusFrame) inbound()  {}
func (ErrorFrame) inbound()       {}
func (HeartbeatFrame) inbound()   {}
func (UnknownFrame) inbound()     {}

// envelope is the union of every inbound field.
// message is an object for chat_message and a string for error.
type envelope struct {
	Type             string          `json:"type"`
	Message          json.RawMessage `json:"message"`
	Rooms            []models.Room   `json:"rooms"`
	ConnectionStatus string          `json:"connection_status"`
	Timestamp        json.RawMessage `json:"timestamp"`
}

// DecodeFrame decodes one inbound frame.
func DecodeFrame(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch env.Type {
	case TypeChatMessage:
		if len(env.Message) == 0 {
			return nil, fmt.Errorf("decode frame: chat_message without message")
		}
		var msg models.Message
		if err := json.Unmarshal(env.Message, &msg); err != nil {
			return nil, fmt.Errorf("decode chat_message: %w", err)
		}
		return ChatMessageFrame{Message: msg}, nil

	case TypeRoomStatus, TypeRoomList:
		return RoomStatusFrame{Type: env.Type, Rooms: env.Rooms, ConnectionStatus: env.ConnectionStatus}, nil

	case TypeError:
		return ErrorFrame{Message: decodeErrorMessage(env.Message)}, nil

	case TypeHeartbeat, TypePong:
		return HeartbeatFrame{Type: env.Type, Timestamp: decodeTimestamp(env.Timestamp)}, nil

	case "":
		return nil, fmt.Errorf("decode frame: missing type")

	default:
		return UnknownFrame{Type: env.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

// decodeTimestamp accepts epoch milliseconds as a number, a numeric string or
// an RFC 3339 string. Anything else yields 0.
func decodeTimestamp(raw json.RawMessage) int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	if raw[0] != '"' {
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return 0
		}
		return int64(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UnixMilli()
	}
	return 0
}

// decodeErrorMessage accepts a string or an object with a message field.
func decodeErrorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

// Outbound is a frame the client sends.
type Outbound interface {
	FrameType() string
	outbound()
}

// ChatMessageOut sends chat content. ClientID lets servers that support it
// echo the optimistic local id back on the confirmed message.
type ChatMessageOut struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	ClientID string `json:"client_id,omitempty"`
}

// HeartbeatOut is the keepalive frame.
type HeartbeatOut struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// AuthOut presents the bearer credential after the handshake.
type AuthOut struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

func (ChatMessageOut) FrameType() string { return TypeChatMessage }
func (HeartbeatOut) FrameType() string   { return TypeHeartbeat }
func (AuthOut) FrameType() string        { return TypeAuth }

func (ChatMessageOut) outbound() {}
func (HeartbeatOut) outbound()   {}
func (AuthOut) outbound()        {}

// NewChatMessage builds an outbound chat frame.
func NewChatMessage(content, clientID string) ChatMessageOut {
	return ChatMessageOut{Type: TypeChatMessage, Content: content, ClientID: clientID}
}

// NewHeartbeat builds a keepalive frame stamped with t in milliseconds.
func NewHeartbeat(t time.Time) HeartbeatOut {
	return HeartbeatOut{Type: TypeHeartbeat, Timestamp: t.UnixMilli()}
}

// NewAuth builds the auth frame.
func NewAuth(token string) AuthOut {
	return AuthOut{Type: TypeAuth, Token: token}
}

// EncodeFrame encodes an outbound frame.
func EncodeFrame(f Outbound) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.FrameType(), err)
	}
	return data, nil
}
