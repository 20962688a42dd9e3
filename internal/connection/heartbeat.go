// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package connection

import (
	"sync"
	"time"

	"github.com/tomtom215/livesync/internal/logging"
	"github.com/tomtom215/livesync/internal/transport"
)

// HeartbeatConfig configures channel keepalives.
type HeartbeatConfig struct {
	Interval time.Duration
	// Timeout closes the channel as abnormal when no liveness frame arrives
	// within it. Zero keeps the heartbeat send-only.
	Timeout time.Duration
}

// Heartbeat sends a keepalive frame on a fixed interval while a channel is Open.
// It is started on Open and stopped on any exit from Open.
type Heartbeat struct {
	cfg    HeartbeatConfig
	send   func(transport.Outbound) error
	onDead func()
	now    func() time.Time

	mu   sync.Mutex
	last time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// StartHeartbeat starts the send loop. onDead is called at most once, and
// only when cfg.Timeout is positive and no liveness frame was seen in time.
func StartHeartbeat(cfg HeartbeatConfig, send func(transport.Outbound) error, onDead func(), now func() time.Time) *Heartbeat {
	if now == nil {
		now = time.Now
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	h := &Heartbeat{
		cfg:    cfg,
		send:   send,
		onDead: onDead,
		now:    now,
		last:   now(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Heartbeat) loop() {
	defer close(h.done)

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			now := h.now()
			if h.cfg.Timeout > 0 && now.Sub(h.Last()) > h.cfg.Timeout {
				logging.Warn().Dur("timeout", h.cfg.Timeout).Msg("[heartbeat] No liveness frame, closing channel")
				if h.onDead != nil {
					h.onDead()
				}
				return
			}
			if err := h.send(transport.NewHeartbeat(now)); err != nil {
				// The transport's own close event reports the failure.
				logging.Debug().Err(err).Msg("[heartbeat] Send failed")
			}
		}
	}
}

// Seen records a liveness frame.
func (h *Heartbeat) Seen(t time.Time) {
	h.mu.Lock()
	if t.After(h.last) {
		h.last = t
	}
	h.mu.Unlock()
}

// Last returns the time of the last liveness frame, or the start time.
func (h *Heartbeat) Last() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Stop stops the loop. It is idempotent and safe to call from onDead.
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Wait blocks until the loop has exited.
func (h *Heartbeat) Wait() {
	<-h.done
}
