// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package rest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/livesync/internal/logging"
	"github.com/tomtom215/livesync/internal/metrics"
	"github.com/tomtom215/livesync/internal/models"
	"github.com/tomtom215/livesync/internal/registry"
)

// BreakerName labels the REST circuit breaker in logs and metrics.
const BreakerName = "storefront-api"

// BreakerClient wraps Client with a circuit breaker.
//
// Circuit Breaker Configuration:
//   - MaxRequests: 3 (requests allowed in half-open state)
//   - Interval: 1 minute (reset counts in closed state)
//   - Timeout: 2 minutes (wait before half-open)
//   - ReadyToTrip: 60% failure rate over at least 10 requests
//
// Client errors (4xx other than 429) do not count as failures: a missing
// room says nothing about the health of the API.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewBreakerClient wraps client.
func NewBreakerClient(client *Client) *BreakerClient {
	name := BreakerName

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *StatusError
			return errors.As(err, &se) && se.IsClientError()
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &BreakerClient{client: client, cb: cb, name: name}
}

// State returns the breaker state label.
func (b *BreakerClient) State() string {
	return stateToString(b.cb.State())
}

func (b *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		default:
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
			counts := b.cb.Counts()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(counts.ConsecutiveFailures))
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	return result, nil
}

func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// Fetch GETs path through the breaker.
func (b *BreakerClient) Fetch(ctx context.Context, path string) (json.RawMessage, error) {
	return castResult[json.RawMessage](b.execute(func() (interface{}, error) {
		return b.client.Fetch(ctx, path)
	}))
}

// FetchFunc adapts Fetch of one path to a registry fetch.
func (b *BreakerClient) FetchFunc(path string) registry.FetchFunc {
	return func(ctx context.Context) (json.RawMessage, error) {
		return b.Fetch(ctx, path)
	}
}

// PostMessage writes a chat message through the breaker.
func (b *BreakerClient) PostMessage(ctx context.Context, roomID models.ID, content, clientID string) (models.Message, error) {
	return castResult[models.Message](b.execute(func() (interface{}, error) {
		return b.client.PostMessage(ctx, roomID, content, clientID)
	}))
}

// RoomHistory lists room messages through the breaker.
func (b *BreakerClient) RoomHistory(ctx context.Context, roomID models.ID) ([]models.Message, error) {
	return castResult[[]models.Message](b.execute(func() (interface{}, error) {
		return b.client.RoomHistory(ctx, roomID)
	}))
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
