// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/livesync/internal/logging"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("event bus closed")

const metadataPublishedAt = "published_at"

// Event is one named event as delivered to handlers.
type Event struct {
	ID          string
	Name        string
	Payload     json.RawMessage
	PublishedAt time.Time
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Handler receives events for one name.
type Handler func(Event)

// Config configures a Bus.
type Config struct {
	// Buffer is the per-subscriber output buffer.
	Buffer int64
}

// Bus fans named events out to in-process subscribers.
//
// Delivery is asynchronous. Every subscriber receives every event published
// after it subscribed; ordering between two events is not guaranteed.
type Bus struct {
	pubsub *gochannel.GoChannel

	mu     sync.Mutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a bus backed by a watermill GoChannel.
func New(cfg Config) *Bus {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.Buffer,
		}, logging.NewWatermillAdapter()),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Publish marshals payload and delivers it to every subscriber of name.
func (b *Bus) Publish(name string, payload interface{}) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}

	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set(metadataPublishedAt, time.Now().UTC().Format(time.RFC3339Nano))

	if err := b.pubsub.Publish(name, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", name, err)
	}
	return nil
}

// Subscribe registers handler for name and returns a function that removes
// it. Handler panics are logged and do not affect other subscribers. The
// returned function is idempotent and may be called from inside handler.
func (b *Bus) Subscribe(name string, handler Handler) (func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	ctx, cancel := context.WithCancel(b.ctx)
	b.wg.Add(1)
	b.mu.Unlock()

	messages, err := b.pubsub.Subscribe(ctx, name)
	if err != nil {
		cancel()
		b.wg.Done()
		return nil, fmt.Errorf("subscribe %s: %w", name, err)
	}

	go func() {
		defer b.wg.Done()
		for msg := range messages {
			// Stop delivering as soon as the subscription is cancelled, even
			// if messages are still buffered.
			if ctx.Err() != nil {
				msg.Ack()
				continue
			}
			b.deliver(name, handler, msg)
			msg.Ack()
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

// Close stops every subscription and waits for in-flight handlers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	err := b.pubsub.Close()
	b.wg.Wait()
	return err
}

func (b *Bus) deliver(name string, handler Handler, msg *message.Message) {
	ev := Event{
		ID:      msg.UUID,
		Name:    name,
		Payload: json.RawMessage(msg.Payload),
	}
	if ts := msg.Metadata.Get(metadataPublishedAt); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.PublishedAt = t
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			logging.Error().
				Str("event", name).
				Str("event_id", ev.ID).
				Interface("panic", rec).
				Msg("[eventbus] Handler panicked")
		}
	}()
	handler(ev)
}
