// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package services

import (
	"context"
)

// ContextService is anything with a suture-style Serve method. The poll
// scheduler, the subscription client and the websocket hub all qualify.
type ContextService interface {
	Serve(ctx context.Context) error
}

// NamedService gives a ContextService a stable name in supervisor logs.
type NamedService struct {
	svc  ContextService
	name string
}

// Named wraps svc under name.
//
//	tree.AddSyncService(services.Named("websocket-hub", hub))
func Named(name string, svc ContextService) *NamedService {
	return &NamedService{svc: svc, name: name}
}

// Serve implements suture.Service by delegating to the wrapped service.
func (n *NamedService) Serve(ctx context.Context) error {
	return n.svc.Serve(ctx)
}

// String implements fmt.Stringer.
func (n *NamedService) String() string {
	return n.name
}
