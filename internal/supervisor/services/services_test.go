// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/livesync/internal/eventbus"
)

type fakeContextService struct {
	runs atomic.Int32
	err  error
}

func (f *fakeContextService) Serve(ctx context.Context) error {
	f.runs.Add(1)
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestNamedService(t *testing.T) {
	inner := &fakeContextService{}
	svc := Named("poll-scheduler", inner)
	if svc.String() != "poll-scheduler" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want context.Canceled", err)
	}

	failing := Named("hub", &fakeContextService{err: errors.New("boom")})
	if err := failing.Serve(context.Background()); err == nil || err.Error() != "boom" {
		t.Errorf("Serve = %v, want boom", err)
	}
	if inner.runs.Load() != 1 {
		t.Errorf("runs = %d", inner.runs.Load())
	}
}

type fakeSweeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (f *fakeSweeper) SweepIdle(maxIdle time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, maxIdle)
	return 1
}

func (f *fakeSweeper) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestNewSweepService_Interval(t *testing.T) {
	tests := []struct {
		interval, maxIdle, want time.Duration
	}{
		{0, 10 * time.Minute, 5 * time.Minute},
		{0, time.Second, time.Second},
		{100 * time.Millisecond, time.Minute, time.Second},
		{30 * time.Second, time.Minute, 30 * time.Second},
	}
	for _, tt := range tests {
		svc := NewSweepService(&fakeSweeper{}, tt.interval, tt.maxIdle)
		if svc.interval != tt.want {
			t.Errorf("NewSweepService(%v, %v).interval = %v, want %v", tt.interval, tt.maxIdle, svc.interval, tt.want)
		}
	}
}

func TestSweepService_Serve(t *testing.T) {
	sweeper := &fakeSweeper{}
	svc := NewSweepService(sweeper, time.Second, 5*time.Minute)
	svc.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for sweeper.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper was not called twice")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}
	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()
	if sweeper.calls[0] != 5*time.Minute {
		t.Errorf("maxIdle = %v, want 5m", sweeper.calls[0])
	}
}

type eventSink struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (s *eventSink) Event(e eventbus.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *eventSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Name)
	}
	return out
}

func TestForwarderService(t *testing.T) {
	bus := eventbus.New(eventbus.Config{})
	t.Cleanup(func() { _ = bus.Close() })

	sink := &eventSink{}
	svc := NewForwarderService(bus, sink, eventbus.ConnectionStatus, eventbus.RoomStatus)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	// Subscriptions are made asynchronously; republish until one lands.
	deadline := time.Now().Add(2 * time.Second)
	for len(sink.names()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no event forwarded")
		}
		if err := bus.Publish(eventbus.ConnectionStatus, map[string]bool{"connected": true}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := bus.Publish(eventbus.ChatMessage, map[string]string{"id": "srv-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	for _, name := range sink.names() {
		if name != eventbus.ConnectionStatus {
			t.Errorf("forwarded unexpected event %q", name)
		}
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}
}

func TestForwarderService_ClosedBus(t *testing.T) {
	bus := eventbus.New(eventbus.Config{})
	_ = bus.Close()

	svc := NewForwarderService(bus, &eventSink{}, eventbus.RoomList)
	err := svc.Serve(context.Background())
	if !errors.Is(err, eventbus.ErrClosed) {
		t.Errorf("Serve = %v, want ErrClosed", err)
	}
	if svc.String() != "event-forwarder" {
		t.Errorf("String() = %q", svc.String())
	}
}
