// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package transport

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/livesync/internal/syncerr"
)

func testOptions() Options {
	return Options{
		RequireCredential: true,
		HandshakeTimeout:  2 * time.Second,
		WriteTimeout:      2 * time.Second,
	}
}

func TestOpen_MissingCredentialDoesNotDial(t *testing.T) {
	dialer := &countingDialer{inner: websocket.DefaultDialer}
	opts := testOptions()
	opts.Dialer = dialer

	_, err := Open(context.Background(), Endpoint{Resource: "chatroom:42", URL: "ws://127.0.0.1:1/chat/42/"}, "", opts)
	if !errors.Is(err, syncerr.ErrUnauthorized) {
		t.Fatalf("Open() error = %v, want Unauthorized", err)
	}
	if !errors.Is(err, ErrCredentialMissing) {
		t.Errorf("Open() error should wrap ErrCredentialMissing, got %v", err)
	}
	checkIntEqual(t, "dial calls", int(dialer.calls.Load()), 0)
}

func TestOpen_ExpiredJWTDoesNotDial(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "customer-1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	dialer := &countingDialer{inner: websocket.DefaultDialer}
	opts := testOptions()
	opts.Dialer = dialer

	_, err = Open(context.Background(), Endpoint{Resource: "chatroom:42", URL: "ws://127.0.0.1:1/chat/42/"}, token, opts)
	if !errors.Is(err, ErrCredentialExpired) {
		t.Fatalf("Open() error = %v, want ErrCredentialExpired", err)
	}
	checkIntEqual(t, "dial calls", int(dialer.calls.Load()), 0)
}

func TestOpen_HandshakeRejection(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, syncerr.ErrUnauthorized},
		{http.StatusForbidden, syncerr.ErrForbidden},
		{http.StatusNotFound, syncerr.ErrRoomNotFound},
		{http.StatusBadGateway, syncerr.ErrConnect},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			mock := newMockChannelServer(tt.status)
			defer mock.close()

			_, err := Open(context.Background(), Endpoint{Resource: "chatroom:42", URL: mock.wsURL()}, testToken, testOptions())
			if !errors.Is(err, tt.want) {
				t.Fatalf("Open() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestChannel_OpenSendReceiveClose(t *testing.T) {
	mock := newMockChannelServer(0)
	defer mock.close()

	ch, err := Open(context.Background(), Endpoint{Resource: "chatroom:42", URL: mock.wsURL()}, testToken, testOptions())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	server := mock.accept(t)
	defer server.Close()

	if _, ok := nextEvent(t, ch).(Opened); !ok {
		t.Fatal("first event should be Opened")
	}
	if ch.State() != StateOpen {
		t.Fatalf("State() = %v, want open", ch.State())
	}

	// The auth frame is written immediately after the handshake.
	var auth AuthOut
	if err := server.ReadJSON(&auth); err != nil {
		t.Fatalf("read auth frame: %v", err)
	}
	checkStringEqual(t, "auth.type", auth.Type, TypeAuth)
	checkStringEqual(t, "auth.token", auth.Token, testToken)

	// Outbound chat frame.
	if err := ch.Send(NewChatMessage("hello", "temp_1700000000000")); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	var out ChatMessageOut
	if err := server.ReadJSON(&out); err != nil {
		t.Fatalf("read chat frame: %v", err)
	}
	checkStringEqual(t, "out.content", out.Content, "hello")
	checkStringEqual(t, "out.client_id", out.ClientID, "temp_1700000000000")

	// Inbound chat frame.
	frame, _ := json.Marshal(map[string]interface{}{
		"type":    "chat_message",
		"message": map[string]interface{}{"id": "srv-1", "content": "hello"},
	})
	if err := server.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("server write: %v", err)
	}
	ev := nextEvent(t, ch)
	msg, ok := ev.(MessageReceived)
	if !ok {
		t.Fatalf("event = %T, want MessageReceived", ev)
	}
	chat, ok := msg.Frame.(ChatMessageFrame)
	if !ok {
		t.Fatalf("frame = %T, want ChatMessageFrame", msg.Frame)
	}
	checkStringEqual(t, "message.id", string(chat.Message.ID), "srv-1")

	// Server answers our close frame through gorilla's default close handler.
	go func() {
		for {
			if _, _, err := server.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch.Close("user left")
	closed := waitClosed(t, ch)
	checkIntEqual(t, "close code", closed.Code, CodeNormal)
	if ch.State() != StateClosed {
		t.Errorf("State() = %v, want closed", ch.State())
	}

	if err := ch.Send(NewHeartbeat(time.Now())); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Send after close error = %v, want ErrNotOpen", err)
	}
}

func TestChannel_RemoteCloseCodeIsReported(t *testing.T) {
	mock := newMockChannelServer(0)
	defer mock.close()

	ch, err := Open(context.Background(), Endpoint{Resource: "chatroom:42", URL: mock.wsURL()}, testToken, testOptions())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	server := mock.accept(t)
	defer server.Close()

	msg := websocket.FormatCloseMessage(CodeAuthInvalid, "token revoked")
	if err := server.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("server close: %v", err)
	}

	closed := waitClosed(t, ch)
	checkIntEqual(t, "close code", closed.Code, CodeAuthInvalid)
	checkStringEqual(t, "close reason", closed.Reason, "token revoked")

	select {
	case _, ok := <-ch.Events():
		if ok {
			t.Error("event stream should be closed after Closed")
		}
	case <-time.After(time.Second):
		t.Error("event stream not closed")
	}
}

func TestChannel_DroppedConnectionIsAbnormal(t *testing.T) {
	mock := newMockChannelServer(0)
	defer mock.close()

	ch, err := Open(context.Background(), Endpoint{Resource: "chatroom:42", URL: mock.wsURL()}, testToken, testOptions())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	server := mock.accept(t)
	_ = server.Close()

	closed := waitClosed(t, ch)
	checkIntEqual(t, "close code", closed.Code, CodeAbnormal)
	if Classify(closed.Code) != CloseReconnect {
		t.Errorf("Classify(%d) = %v, want reconnect", closed.Code, Classify(closed.Code))
	}
}

func TestChannel_MalformedFrameKeepsChannelOpen(t *testing.T) {
	mock := newMockChannelServer(0)
	defer mock.close()

	ch, err := Open(context.Background(), Endpoint{Resource: "chatroom:42", URL: mock.wsURL()}, testToken, testOptions())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	server := mock.accept(t)
	defer server.Close()
	nextEvent(t, ch) // Opened

	_ = server.WriteMessage(websocket.TextMessage, []byte("{not json"))
	if _, ok := nextEvent(t, ch).(TransportError); !ok {
		t.Fatal("malformed frame should surface as TransportError")
	}

	_ = server.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong","timestamp":1700000000000}`))
	ev := nextEvent(t, ch)
	mr, ok := ev.(MessageReceived)
	if !ok {
		t.Fatalf("event = %T, want MessageReceived", ev)
	}
	hb, ok := mr.Frame.(HeartbeatFrame)
	if !ok || hb.Timestamp != 1700000000000 {
		t.Errorf("frame = %#v, want pong heartbeat", mr.Frame)
	}
	if ch.State() != StateOpen {
		t.Errorf("State() = %v, want open", ch.State())
	}
}

func TestEndpointURL(t *testing.T) {
	got := EndpointURL("wss://shop.example.com/ws/", "chat", "42")
	checkStringEqual(t, "EndpointURL", got, "wss://shop.example.com/ws/chat/42/")
}
