// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package main

import (
	"context"
	"strings"
	"testing"

	"github.com/tomtom215/livesync/internal/config"
	"github.com/tomtom215/livesync/internal/snapshot"
	"github.com/tomtom215/livesync/internal/subscription"
	"github.com/tomtom215/livesync/internal/syncerr"
)

type fakeBreaker struct{ state string }

func (f fakeBreaker) State() string { return f.state }

type fakeStatus struct{ st subscription.Status }

func (f fakeStatus) ConnectionStatus() subscription.Status { return f.st }

func TestReadyChecks(t *testing.T) {
	ctx := context.Background()

	checks := readyChecks(fakeBreaker{"closed"}, fakeStatus{}, false)
	if len(checks) != 1 {
		t.Fatalf("checks = %d, want 1 without push", len(checks))
	}
	if err := checks["storefront_api"](ctx); err != nil {
		t.Errorf("closed breaker: %v", err)
	}

	checks = readyChecks(fakeBreaker{"open"}, fakeStatus{}, false)
	if err := checks["storefront_api"](ctx); err == nil {
		t.Error("open breaker should fail readiness")
	}

	failed := fakeStatus{st: subscription.Status{LastError: syncerr.FromCloseCode("notifications", 4401, "")}}
	checks = readyChecks(fakeBreaker{"half-open"}, failed, true)
	if err := checks["storefront_api"](ctx); err != nil {
		t.Errorf("half-open breaker: %v", err)
	}
	err := checks["push_channel"](ctx)
	if err == nil || !syncerr.IsTerminal(err) {
		t.Errorf("push_channel = %v, want wrapped terminal error", err)
	}

	checks = readyChecks(fakeBreaker{"closed"}, fakeStatus{st: subscription.Status{Connected: true}}, true)
	if err := checks["push_channel"](ctx); err != nil {
		t.Errorf("connected push_channel: %v", err)
	}
}

type fakeFollower struct {
	subscribed   []string
	unsubscribed []string
}

func (f *fakeFollower) SubscribeToResource(id string, onUpdate func(subscription.Update)) func() {
	f.subscribed = append(f.subscribed, id)
	onUpdate(subscription.Update{Resource: id, Loaded: true})
	return func() { f.unsubscribed = append(f.unsubscribed, id) }
}

func TestFollowResources(t *testing.T) {
	f := &fakeFollower{}
	var updates []string
	stop := followResources(f, []string{"orders", "inquiries"}, func(u subscription.Update) {
		updates = append(updates, u.Resource)
	})

	if strings.Join(f.subscribed, ",") != "orders,inquiries" {
		t.Errorf("subscribed = %v", f.subscribed)
	}
	if strings.Join(updates, ",") != "orders,inquiries" {
		t.Errorf("updates = %v", updates)
	}

	stop()
	if strings.Join(f.unsubscribed, ",") != "orders,inquiries" {
		t.Errorf("unsubscribed = %v", f.unsubscribed)
	}
}

func TestOpenSnapshotStore(t *testing.T) {
	store, err := openSnapshotStore(config.RegistryConfig{})
	if err != nil {
		t.Fatalf("openSnapshotStore: %v", err)
	}
	if _, ok := store.(*snapshot.MemoryStore); !ok {
		t.Errorf("store = %T, want *snapshot.MemoryStore", store)
	}

	store, err = openSnapshotStore(config.RegistryConfig{SnapshotInMemory: true})
	if err != nil {
		t.Fatalf("openSnapshotStore in-memory badger: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*snapshot.BadgerStore); !ok {
		t.Errorf("store = %T, want *snapshot.BadgerStore", store)
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"127.0.0.1", 8765, "127.0.0.1:8765"},
		{"", 8765, ":8765"},
		{"::1", 80, "[::1]:80"},
	}
	for _, tt := range tests {
		if got := serverAddr(config.ServerConfig{Host: tt.host, Port: tt.port}); got != tt.want {
			t.Errorf("serverAddr(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}
