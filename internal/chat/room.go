// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/livesync/internal/connection"
	"github.com/tomtom215/livesync/internal/eventbus"
	"github.com/tomtom215/livesync/internal/logging"
	"github.com/tomtom215/livesync/internal/metrics"
	"github.com/tomtom215/livesync/internal/models"
	"github.com/tomtom215/livesync/internal/registry"
	"github.com/tomtom215/livesync/internal/syncerr"
	"github.com/tomtom215/livesync/internal/transport"
)

// ResourcePrefix prefixes the registry resource of every room.
const ResourcePrefix = "chatroom:"

// ResourceID returns the registry resource identifier of a room.
func ResourceID(roomID models.ID) string {
	return ResourcePrefix + string(roomID)
}

// Writer is the confirmed-write path used when the push channel is not Open.
type Writer interface {
	PostMessage(ctx context.Context, roomID models.ID, content, clientID string) (models.Message, error)
}

// HistorySource lists the messages of a room over request/response.
type HistorySource interface {
	RoomHistory(ctx context.Context, roomID models.ID) ([]models.Message, error)
}

// Registry is the subset of the resource registry a room writes to.
type Registry interface {
	Publish(resourceID string, items []json.RawMessage)
	SetFetch(resourceID string, fetch registry.FetchFunc)
	HoldPending(resourceID string)
	ReleasePending(resourceID string)
}

// Publisher publishes named events.
type Publisher interface {
	Publish(name string, payload interface{}) error
}

// RoomOptions configures a Room.
type RoomOptions struct {
	RoomID models.ID
	Sender models.SenderKind

	// Open dials the push channel. When nil the room has no push channel
	// and every send goes through Writer.
	Open      connection.OpenFunc
	Policy    connection.Policy
	Heartbeat connection.HeartbeatConfig

	Writer   Writer
	History  HistorySource
	Registry Registry
	Events   Publisher

	MatchWindow time.Duration
	Now         func() time.Time
}

// Room is one chat room session: an optional push connection, the
// reconciled message sequence and its registry resource.
type Room struct {
	opts     RoomOptions
	resource string
	rec      *Reconciler
	conn     *connection.Connection
}

// NewRoom creates a room. Start connects it.
func NewRoom(opts RoomOptions) *Room {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MatchWindow <= 0 {
		opts.MatchWindow = DefaultMatchWindow
	}

	r := &Room{
		opts:     opts,
		resource: ResourceID(opts.RoomID),
		rec: NewReconciler(ReconcilerOptions{
			RoomID: opts.RoomID,
			Sender: opts.Sender,
			Match:  MatchPending(opts.MatchWindow),
			Now:    opts.Now,
		}),
	}

	if opts.Open != nil {
		r.conn = connection.New(connection.Options{
			Resource:      r.resource,
			Open:          opts.Open,
			Policy:        opts.Policy,
			Heartbeat:     opts.Heartbeat,
			Now:           opts.Now,
			OnFrame:       r.handleFrame,
			OnStateChange: r.handleState,
		})
	}
	if opts.History != nil && opts.Registry != nil {
		opts.Registry.SetFetch(r.resource, r.FetchHistory)
	}
	return r
}

// ID returns the room id.
func (r *Room) ID() models.ID { return r.opts.RoomID }

// Resource returns the registry resource identifier.
func (r *Room) Resource() string { return r.resource }

// Reconciler exposes the room's visible message sequence.
func (r *Room) Reconciler() *Reconciler { return r.rec }

// Push reports whether the room has a push channel.
func (r *Room) Push() bool { return r.conn != nil }

// Start opens the push channel if the room has one.
func (r *Room) Start(ctx context.Context) error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Connect(ctx)
}

// Reconnect manually retries a Failed push channel.
func (r *Room) Reconnect(ctx context.Context) error {
	if r.conn == nil {
		return fmt.Errorf("reconnect %s: room has no push channel", r.resource)
	}
	return r.conn.Retry(ctx)
}

// Status returns the push connection status. A room without a push
// channel reports Disconnected.
func (r *Room) Status() connection.Status {
	if r.conn == nil {
		return connection.Status{Resource: r.resource, State: connection.StateDisconnected}
	}
	return r.conn.Status()
}

// Close closes the push channel and cancels any pending reconnection.
func (r *Room) Close() {
	if r.conn != nil {
		r.conn.Close()
	}
}

// Send adds content optimistically and transmits it. The push channel is
// tried first; if it is not Open the confirmed-write path is used. If both
// fail the message stays visible, is marked failed, and a retryable
// SendFailure is returned.
func (r *Room) Send(ctx context.Context, content string) (PendingMessage, error) {
	p := r.rec.AddOptimistic(content)
	if r.opts.Registry != nil {
		r.opts.Registry.HoldPending(r.resource)
	}
	r.publish()
	return r.transmit(ctx, p)
}

// RetrySend re-transmits a failed message, keeping its local id and position.
func (r *Room) RetrySend(ctx context.Context, localID string) (PendingMessage, error) {
	p, err := r.rec.Retry(localID)
	if err != nil {
		return PendingMessage{}, err
	}
	r.publish()
	return r.transmit(ctx, p)
}

func (r *Room) transmit(ctx context.Context, p PendingMessage) (PendingMessage, error) {
	var pushErr error
	if r.conn != nil {
		pushErr = r.conn.Send(transport.NewChatMessage(p.Content, p.LocalID))
		if pushErr == nil {
			return p, nil
		}
		logging.Debug().Err(pushErr).Str("resource", r.resource).Str("local_id", p.LocalID).
			Msg("[chat] Push send unavailable, using confirmed write")
	}

	if r.opts.Writer == nil {
		err := pushErr
		if err == nil {
			err = errors.New("no send path configured")
		}
		return r.fail(p, err)
	}

	msg, err := r.opts.Writer.PostMessage(ctx, r.opts.RoomID, p.Content, p.LocalID)
	if err != nil {
		metrics.RecordSendFallback(false)
		return r.fail(p, err)
	}
	metrics.RecordSendFallback(true)

	if msg.ClientID == "" {
		msg.ClientID = p.LocalID
	}
	outcome, localID := r.rec.Reconcile(msg)
	r.afterApply(msg, localID, outcome)
	p.ConfirmedID = msg.ID
	return p, nil
}

func (r *Room) fail(p PendingMessage, cause error) (PendingMessage, error) {
	err := syncerr.New(syncerr.SendFailure, "send", r.resource, cause)
	r.rec.MarkFailed(p.LocalID, err)
	p.Failed = true
	p.Err = err
	r.publish()

	logging.Warn().Err(cause).Str("resource", r.resource).Str("local_id", p.LocalID).
		Msg("[chat] Message send failed")
	return p, err
}

// FetchHistory pulls the room history, merges it through the reconciler
// and returns the visible sequence. A missing room yields an empty list.
func (r *Room) FetchHistory(ctx context.Context) (json.RawMessage, error) {
	if r.opts.History == nil {
		return r.encodeItems()
	}

	msgs, err := r.opts.History.RoomHistory(ctx, r.opts.RoomID)
	if err != nil {
		var nf interface{ IsNotFound() bool }
		if errors.As(err, &nf) && nf.IsNotFound() {
			return r.encodeItems()
		}
		return nil, err
	}

	for _, m := range msgs {
		if outcome, _ := r.rec.Reconcile(m); outcome == Confirmed && r.opts.Registry != nil {
			r.opts.Registry.ReleasePending(r.resource)
		}
	}
	return r.encodeItems()
}

// ApplyMessage reconciles a message that reached this client outside the
// push channel, such as a relayed notification.
func (r *Room) ApplyMessage(msg models.Message) Outcome {
	outcome, localID := r.rec.Reconcile(msg)
	r.afterApply(msg, localID, outcome)
	return outcome
}

func (r *Room) handleFrame(f transport.Frame) {
	switch fr := f.(type) {
	case transport.ChatMessageFrame:
		r.ApplyMessage(fr.Message)
	case transport.RoomStatusFrame:
		r.emit(fr.Type, eventbus.RoomStatusEvent{
			RoomID:           r.opts.RoomID,
			Rooms:            fr.Rooms,
			ConnectionStatus: fr.ConnectionStatus,
		})
	case transport.ErrorFrame:
		logging.Warn().Str("resource", r.resource).Str("message", fr.Message).Msg("[chat] Server reported an error")
		r.emit(eventbus.ServerError, eventbus.ServerErrorEvent{RoomID: r.opts.RoomID, Message: fr.Message})
	case transport.HeartbeatFrame:
		// Liveness is tracked by the connection.
	case transport.UnknownFrame:
		logging.Debug().Str("resource", r.resource).Str("type", fr.Type).Msg("[chat] Ignoring unknown frame")
	}
}

func (r *Room) handleState(oldState, newState connection.State) {
	ev := eventbus.ConnectionStatusEvent{
		Resource: r.resource,
		State:    newState.String(),
		Previous: oldState.String(),
		At:       r.opts.Now(),
	}
	if newState == connection.StateFailed {
		if err := r.conn.Status().LastError; err != nil {
			ev.Error = err.Error()
			ev.UserMessage = syncerr.UserMessage(err)
		}
	}
	r.emit(eventbus.ConnectionStatus, ev)
}

// afterApply publishes the visible sequence and the chat event for one
// reconciled message. Duplicates change nothing and publish nothing.
func (r *Room) afterApply(msg models.Message, localID string, outcome Outcome) {
	if outcome == Duplicate {
		return
	}
	if outcome == Confirmed && r.opts.Registry != nil && localID != "" {
		r.opts.Registry.ReleasePending(r.resource)
	}
	r.publish()
	r.emit(eventbus.ChatMessage, eventbus.ChatMessageEvent{
		RoomID:  r.opts.RoomID,
		Message: msg,
		LocalID: localID,
		Outcome: outcome.String(),
	})
}

func (r *Room) publish() {
	if r.opts.Registry == nil {
		return
	}
	items := r.rec.Items()
	raws := make([]json.RawMessage, 0, len(items))
	for i := range items {
		data, err := json.Marshal(items[i])
		if err != nil {
			logging.Error().Err(err).Str("resource", r.resource).Msg("[chat] Failed to encode message")
			continue
		}
		raws = append(raws, data)
	}
	r.opts.Registry.Publish(r.resource, raws)
}

func (r *Room) encodeItems() (json.RawMessage, error) {
	data, err := json.Marshal(r.rec.Items())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.resource, err)
	}
	return data, nil
}

func (r *Room) emit(name string, payload interface{}) {
	if r.opts.Events == nil {
		return
	}
	if err := r.opts.Events.Publish(name, payload); err != nil && !errors.Is(err, eventbus.ErrClosed) {
		logging.Warn().Err(err).Str("event", name).Msg("[chat] Failed to publish event")
	}
}
