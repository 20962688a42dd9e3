// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package hub

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/livesync/internal/eventbus"
	"github.com/tomtom215/livesync/internal/logging"
	"github.com/tomtom215/livesync/internal/subscription"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

func setupHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h, cancel
}

func createTestClient(h *Hub) *Client {
	return &Client{id: "test", seq: clientSeq.Add(1), hub: h, send: make(chan Message, 256)}
}

func registerClient(t *testing.T, h *Hub, c *Client) {
	t.Helper()
	h.Register <- c
	waitFor(t, func() bool { return h.ClientCount() > 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("client send channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestNew(t *testing.T) {
	h := New()
	checks := []struct {
		name  string
		check bool
	}{
		{"clients map", h.clients != nil},
		{"broadcast channel", h.broadcast != nil},
		{"Register channel", h.Register != nil},
		{"Unregister channel", h.Unregister != nil},
		{"no clients", h.ClientCount() == 0},
	}
	for _, c := range checks {
		if !c.check {
			t.Errorf("%s not initialized", c.name)
		}
	}
}

func TestHub_ResourceUpdate(t *testing.T) {
	h, _ := setupHub(t)
	c := createTestClient(h)
	registerClient(t, h, c)

	h.ResourceUpdate(subscription.Update{
		Resource:    "orders",
		Loaded:      true,
		Items:       []json.RawMessage{json.RawMessage(`{"id":"1"}`)},
		Err:         errors.New("fetch orders: Network error"),
		UserMessage: "Network error",
	})

	msg := receive(t, c)
	if msg.Type != MessageTypeResourceUpdate || msg.Resource != "orders" {
		t.Fatalf("message = %+v", msg)
	}
	data, ok := msg.Data.(ResourceUpdateData)
	if !ok {
		t.Fatalf("data type = %T", msg.Data)
	}
	if !data.Loaded || len(data.Items) != 1 {
		t.Errorf("data = %+v", data)
	}
	if data.UserMessage != "Network error" || data.Error == "" {
		t.Errorf("error fields = %q / %q", data.Error, data.UserMessage)
	}
}

func TestHub_ResourceUpdateEmptyItems(t *testing.T) {
	h, _ := setupHub(t)
	c := createTestClient(h)
	registerClient(t, h, c)

	h.ResourceUpdate(subscription.Update{Resource: "orders"})

	data := receive(t, c).Data.(ResourceUpdateData)
	if data.Items == nil {
		t.Error("items should encode as an empty array, not null")
	}
}

func TestHub_Event(t *testing.T) {
	h, _ := setupHub(t)
	c := createTestClient(h)
	registerClient(t, h, c)

	h.Event(eventbus.Event{Name: eventbus.ConnectionStatus, Payload: json.RawMessage(`{"connected":false}`)})

	msg := receive(t, c)
	if msg.Type != eventbus.ConnectionStatus || msg.Resource != "" {
		t.Errorf("message = %+v", msg)
	}
}

func TestHub_FilterSkipsOtherResources(t *testing.T) {
	h, _ := setupHub(t)
	c := createTestClient(h)
	c.setFilter([]string{"orders"})
	registerClient(t, h, c)

	h.ResourceUpdate(subscription.Update{Resource: "products"})
	h.ResourceUpdate(subscription.Update{Resource: "orders"})
	h.Event(eventbus.Event{Name: eventbus.RoomList})

	if got := receive(t, c); got.Resource != "orders" {
		t.Errorf("first message resource = %q, want orders", got.Resource)
	}
	if got := receive(t, c); got.Type != eventbus.RoomList {
		t.Errorf("second message type = %q, want %q", got.Type, eventbus.RoomList)
	}
}

func TestHub_SlowClientDropped(t *testing.T) {
	h, _ := setupHub(t)
	slow := &Client{id: "slow", seq: clientSeq.Add(1), hub: h, send: make(chan Message)}
	fast := createTestClient(h)
	registerClient(t, h, slow)
	h.Register <- fast
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	h.Broadcast(Message{Type: "x"})
	receive(t, fast)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	if _, ok := <-slow.send; ok {
		t.Error("slow client channel should be closed")
	}
}

func TestHub_Unregister(t *testing.T) {
	h, _ := setupHub(t)
	c := createTestClient(h)
	registerClient(t, h, c)

	h.Unregister <- c
	waitFor(t, func() bool { return h.ClientCount() == 0 })
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	h, cancel := setupHub(t)
	c := createTestClient(h)
	registerClient(t, h, c)

	cancel()
	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client not closed on shutdown")
	}
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestGetShutdownReason(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := getShutdownReason(ctx); got != ShutdownReasonContextCanceled {
		t.Errorf("canceled: got %q", got)
	}

	ctx, cancel = context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if got := getShutdownReason(ctx); got != ShutdownReasonContextDeadline {
		t.Errorf("deadline: got %q", got)
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := New()
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(h.broadcast)+10; i++ {
			h.Broadcast(Message{Type: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked with no running hub")
	}
}

func dialHub(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func TestHandler_EndToEnd(t *testing.T) {
	h, _ := setupHub(t)
	srv := httptest.NewServer(NewHandler(h, []string{"http://shop.example"}))
	defer srv.Close()

	conn, _, err := dialHub(t, srv, "http://shop.example")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	if err := conn.WriteJSON(clientMessage{Type: MessageTypePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong map[string]interface{}
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong["type"] != MessageTypePong {
		t.Errorf("got %v, want pong", pong)
	}

	h.ResourceUpdate(subscription.Update{Resource: "orders", Loaded: true})
	var update struct {
		Type     string             `json:"type"`
		Resource string             `json:"resource"`
		Data     ResourceUpdateData `json:"data"`
	}
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if update.Type != MessageTypeResourceUpdate || update.Resource != "orders" || !update.Data.Loaded {
		t.Errorf("update = %+v", update)
	}

	_ = conn.Close()
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestHandler_OriginCheck(t *testing.T) {
	h, _ := setupHub(t)
	srv := httptest.NewServer(NewHandler(h, []string{"http://shop.example"}))
	defer srv.Close()

	tests := []struct {
		name   string
		origin string
	}{
		{"missing origin", ""},
		{"foreign origin", "http://evil.example"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := dialHub(t, srv, tt.origin)
			if err == nil {
				conn.Close()
				t.Fatal("expected handshake failure")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("response = %v, want 403", resp)
			}
		})
	}
}

func TestHandler_WildcardOrigin(t *testing.T) {
	h := &Handler{origins: []string{"*"}}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "http://anything.example")
	if !h.checkOrigin(r) {
		t.Error("wildcard should allow any origin")
	}
}
