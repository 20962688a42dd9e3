// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var (
	_ suture.Service = (*HTTPServerService)(nil)
	_ suture.Service = (*NamedService)(nil)
	_ suture.Service = (*SweepService)(nil)
	_ suture.Service = (*ForwarderService)(nil)
)

// fakeHTTPServer blocks in ListenAndServe until Shutdown when block is set.
type fakeHTTPServer struct {
	listenErr   error
	block       bool
	shutdownErr error

	listens   atomic.Int32
	shutdowns atomic.Int32
	started   chan struct{}
	stopCh    chan struct{}
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{
		started: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	f.listens.Add(1)
	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.listenErr != nil {
		return f.listenErr
	}
	if f.block {
		<-f.stopCh
		return http.ErrServerClosed
	}
	return nil
}

func (f *fakeHTTPServer) Shutdown(ctx context.Context) error {
	if f.shutdowns.Add(1) == 1 {
		close(f.stopCh)
	}
	return f.shutdownErr
}

func waitStarted(t *testing.T, f *fakeHTTPServer) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(time.Second):
		t.Fatal("server did not start")
	}
}

func TestNewHTTPServerService_Timeout(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, 10 * time.Second},
		{-5 * time.Second, 10 * time.Second},
		{3 * time.Second, 3 * time.Second},
	}
	for _, tt := range tests {
		svc := NewHTTPServerService(newFakeHTTPServer(), tt.in)
		if svc.shutdownTimeout != tt.want {
			t.Errorf("NewHTTPServerService(%v).shutdownTimeout = %v, want %v", tt.in, svc.shutdownTimeout, tt.want)
		}
	}
	if got := NewHTTPServerService(newFakeHTTPServer(), 0).String(); got != "http-server" {
		t.Errorf("String() = %q", got)
	}
}

func TestHTTPServerService_Serve(t *testing.T) {
	t.Run("graceful shutdown on cancel", func(t *testing.T) {
		server := newFakeHTTPServer()
		server.block = true
		svc := NewHTTPServerService(server, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		waitStarted(t, server)
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return after cancel")
		}
		if server.listens.Load() != 1 || server.shutdowns.Load() != 1 {
			t.Errorf("listens=%d shutdowns=%d, want 1 and 1", server.listens.Load(), server.shutdowns.Load())
		}
	})

	t.Run("bind failure is returned", func(t *testing.T) {
		bindErr := errors.New("bind: address already in use")
		server := newFakeHTTPServer()
		server.listenErr = bindErr

		err := NewHTTPServerService(server, time.Second).Serve(context.Background())
		if !errors.Is(err, bindErr) {
			t.Errorf("expected %v, got %v", bindErr, err)
		}
	})

	t.Run("shutdown failure is returned", func(t *testing.T) {
		shutdownErr := errors.New("shutdown timeout")
		server := newFakeHTTPServer()
		server.block = true
		server.shutdownErr = shutdownErr
		svc := NewHTTPServerService(server, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		waitStarted(t, server)
		cancel()

		if err := <-errCh; !errors.Is(err, shutdownErr) {
			t.Errorf("expected shutdown error, got %v", err)
		}
	})
}

func TestHTTPServerService_RealServer(t *testing.T) {
	srv := &http.Server{
		Addr:              "127.0.0.1:0",
		Handler:           http.NotFoundHandler(),
		ReadHeaderTimeout: time.Second,
	}
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("real server did not shut down")
	}
}

func TestHTTPServerService_WithSupervisor(t *testing.T) {
	server := newFakeHTTPServer()
	server.block = true

	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 3,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          2 * time.Second,
	})
	sup.Add(NewHTTPServerService(server, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	waitStarted(t, server)
	cancel()
	<-errCh

	if server.shutdowns.Load() < 1 {
		t.Error("server Shutdown was not called")
	}
}
