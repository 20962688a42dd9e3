// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the sync layer:
// - Push channel lifecycle (state, reconnects, heartbeats, frames)
// - Resource registry fetches and fan-out
// - Chat reconciliation outcomes
// - REST collaborator circuit breaker
// - Local HTTP API and WebSocket hub

var (
	// Channel Metrics
	ChannelState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "livesync_channel_state",
			Help: "Push channel state (0=disconnected, 1=connecting, 2=open, 3=closing, 4=reconnecting, 5=failed)",
		},
		[]string{"resource"},
	)

	ChannelReconnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_channel_reconnect_attempts_total",
			Help: "Total number of scheduled reconnection attempts",
		},
		[]string{"resource"},
	)

	ChannelFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_channel_failures_total",
			Help: "Total number of channels that entered the Failed state",
		},
		[]string{"kind"}, // unauthorized, forbidden, room_not_found, transient_transport, connect_error
	)

	ChannelCloses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_channel_closes_total",
			Help: "Total number of channel closures by close code",
		},
		[]string{"code"},
	)

	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_frames_received_total",
			Help: "Total number of inbound frames by type",
		},
		[]string{"type"},
	)

	FramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_frames_sent_total",
			Help: "Total number of outbound frames by type",
		},
		[]string{"type"},
	)

	HeartbeatLastSeen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "livesync_heartbeat_last_seen_timestamp_seconds",
			Help: "Unix time of the last liveness frame received",
		},
		[]string{"resource"},
	)

	// Registry Metrics
	RegistryFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livesync_registry_fetch_duration_seconds",
			Help:    "Duration of resource fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)

	RegistryFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_registry_fetch_errors_total",
			Help: "Total number of failed resource fetches",
		},
		[]string{"resource"},
	)

	RegistryNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_registry_notifications_total",
			Help: "Total number of listener deliveries",
		},
		[]string{"kind"}, // data, error
	)

	RegistryListenerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "livesync_registry_listener_panics_total",
			Help: "Total number of listener callbacks that panicked during fan-out",
		},
	)

	RegistryCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "livesync_registry_cache_hits_total",
			Help: "Total number of subscriptions served from fresh cached data",
		},
	)

	RegistryEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livesync_registry_entries",
			Help: "Current number of resource entries held by the registry",
		},
	)

	// Polling Metrics
	PollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_poll_ticks_total",
			Help: "Total number of poll-driven fetches",
		},
		[]string{"resource"},
	)

	ActivePolls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livesync_active_polls",
			Help: "Current number of active polling loops",
		},
	)

	// Chat Metrics
	ReconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_reconcile_outcomes_total",
			Help: "Total number of reconciled inbound messages by outcome",
		},
		[]string{"outcome"}, // appended, duplicate, confirmed, failed
	)

	SendFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_send_fallbacks_total",
			Help: "Total number of sends that used the confirmed-write path",
		},
		[]string{"result"}, // success, failure
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Hub Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)
)

// RecordChannelState records the current state of a resource's push channel.
func RecordChannelState(resource string, state int) {
	ChannelState.WithLabelValues(resource).Set(float64(state))
}

// RecordReconnectAttempt records a scheduled reconnection attempt
func RecordReconnectAttempt(resource string) {
	ChannelReconnectAttempts.WithLabelValues(resource).Inc()
}

// RecordChannelFailure records a channel entering Failed
func RecordChannelFailure(kind string) {
	ChannelFailures.WithLabelValues(kind).Inc()
}

// RecordChannelClose records a close event by code
func RecordChannelClose(code int) {
	ChannelCloses.WithLabelValues(strconv.Itoa(code)).Inc()
}

// RecordFrameReceived records an inbound frame
func RecordFrameReceived(frameType string) {
	FramesReceived.WithLabelValues(frameType).Inc()
}

// RecordFrameSent records an outbound frame
func RecordFrameSent(frameType string) {
	FramesSent.WithLabelValues(frameType).Inc()
}

// RecordHeartbeat records receipt of a liveness frame
func RecordHeartbeat(resource string, at time.Time) {
	HeartbeatLastSeen.WithLabelValues(resource).Set(float64(at.Unix()))
}

// RecordFetch records a registry fetch and its outcome
func RecordFetch(resource string, duration time.Duration, err error) {
	RegistryFetchDuration.WithLabelValues(resource).Observe(duration.Seconds())
	if err != nil {
		RegistryFetchErrors.WithLabelValues(resource).Inc()
	}
}

// RecordNotification records one listener delivery
func RecordNotification(isError bool) {
	if isError {
		RegistryNotifications.WithLabelValues("error").Inc()
		return
	}
	RegistryNotifications.WithLabelValues("data").Inc()
}

// RecordListenerPanic records a recovered listener panic
func RecordListenerPanic() {
	RegistryListenerPanics.Inc()
}

// RecordCacheHit records a subscription served from cache
func RecordCacheHit() {
	RegistryCacheHits.Inc()
}

// RecordPollTick records a poll-driven fetch
func RecordPollTick(resource string) {
	PollTicks.WithLabelValues(resource).Inc()
}

// RecordReconcile records a reconciliation outcome
func RecordReconcile(outcome string) {
	ReconcileOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSendFallback records use of the confirmed-write path
func RecordSendFallback(success bool) {
	if success {
		SendFallbacks.WithLabelValues("success").Inc()
		return
	}
	SendFallbacks.WithLabelValues("failure").Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
