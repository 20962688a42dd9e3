// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package services

import (
	"context"
	"fmt"

	"github.com/tomtom215/livesync/internal/eventbus"
)

// Subscriber is satisfied by *eventbus.Bus.
type Subscriber interface {
	Subscribe(name string, handler eventbus.Handler) (func(), error)
}

// EventSink receives forwarded events. *hub.Hub satisfies it.
type EventSink interface {
	Event(e eventbus.Event)
}

// ForwarderService subscribes to a fixed set of bus events and hands each
// one to a sink for the lifetime of the service.
type ForwarderService struct {
	bus   Subscriber
	sink  EventSink
	names []string
	name  string
}

// NewForwarderService creates the service.
func NewForwarderService(bus Subscriber, sink EventSink, names ...string) *ForwarderService {
	return &ForwarderService{
		bus:   bus,
		sink:  sink,
		names: names,
		name:  "event-forwarder",
	}
}

// Serve implements suture.Service. A failed subscription unwinds the ones
// already made and returns the error so suture restarts the service.
func (f *ForwarderService) Serve(ctx context.Context) error {
	unsubscribes := make([]func(), 0, len(f.names))
	defer func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}()

	for _, name := range f.names {
		unsubscribe, err := f.bus.Subscribe(name, f.sink.Event)
		if err != nil {
			return fmt.Errorf("forward %s events: %w", name, err)
		}
		unsubscribes = append(unsubscribes, unsubscribe)
	}

	<-ctx.Done()
	return ctx.Err()
}

// String implements fmt.Stringer.
func (f *ForwarderService) String() string {
	return f.name
}
