// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const testToken = "test-token"

// mockChannelServer simulates the storefront chat endpoint.
type mockChannelServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader
	connChan chan *websocket.Conn
	status   int // handshake rejection status; 0 accepts
}

func newMockChannelServer(status int) *mockChannelServer {
	mock := &mockChannelServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		connChan: make(chan *websocket.Conn, 4),
		status:   status,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if mock.status != 0 {
			http.Error(w, http.StatusText(mock.status), mock.status)
			return
		}
		if r.URL.Query().Get("token") != testToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := mock.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mock.connChan <- conn
	}))

	return mock
}

func (m *mockChannelServer) close() {
	m.server.Close()
}

func (m *mockChannelServer) wsURL() string {
	return EndpointURL("ws"+strings.TrimPrefix(m.server.URL, "http"), "chat", "42")
}

// accept waits for the next server-side connection.
func (m *mockChannelServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-m.connChan:
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for client connection")
		return nil
	}
}

// countingDialer records whether the network was touched.
type countingDialer struct {
	calls atomic.Int32
	inner Dialer
}

func (d *countingDialer) DialContext(ctx context.Context, urlStr string, h http.Header) (*websocket.Conn, *http.Response, error) {
	d.calls.Add(1)
	return d.inner.DialContext(ctx, urlStr, h)
}

// nextEvent reads one event or fails the test.
func nextEvent(t *testing.T, ch *Channel) Event {
	t.Helper()
	select {
	case ev, ok := <-ch.Events():
		if !ok {
			t.Fatal("event stream closed unexpectedly")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for channel event")
		return nil
	}
}

// waitClosed drains events until Closed and returns it.
func waitClosed(t *testing.T, ch *Channel) Closed {
	t.Helper()
	for {
		ev := nextEvent(t, ch)
		if c, ok := ev.(Closed); ok {
			return c
		}
	}
}

func checkIntEqual(t *testing.T, fieldName string, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %d, got %d", fieldName, want, got)
	}
}

func checkStringEqual(t *testing.T, fieldName, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %q, got %q", fieldName, want, got)
	}
}
