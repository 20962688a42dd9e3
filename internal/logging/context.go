// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	resourceIDKey    contextKey = "resource_id"
)

// GenerateCorrelationID creates a new correlation ID (first 8 characters of a UUID).
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// ContextWithCorrelationID returns a new context carrying the given correlation ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID returns a context with a freshly generated correlation ID.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext retrieves the correlation ID from context.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithResourceID tags a context with the resource identifier being synchronized.
func ContextWithResourceID(ctx context.Context, resourceID string) context.Context {
	return context.WithValue(ctx, resourceIDKey, resourceID)
}

// ResourceIDFromContext retrieves the resource identifier from context.
func ResourceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(resourceIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns the global logger with correlation_id and resource_id added when present.
//
//	logging.Ctx(ctx).Info().Msg("Fetch completed")
//	// {"level":"info","correlation_id":"abc12345","resource_id":"orders","message":"Fetch completed"}
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := Logger().With()

	if correlationID := CorrelationIDFromContext(ctx); correlationID != "" {
		logCtx = logCtx.Str("correlation_id", correlationID)
	}
	if resourceID := ResourceIDFromContext(ctx); resourceID != "" {
		logCtx = logCtx.Str("resource_id", resourceID)
	}

	l := logCtx.Logger()
	return &l
}
