// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package subscription

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/livesync/internal/chat"
	"github.com/tomtom215/livesync/internal/config"
	"github.com/tomtom215/livesync/internal/connection"
	"github.com/tomtom215/livesync/internal/eventbus"
	"github.com/tomtom215/livesync/internal/logging"
	"github.com/tomtom215/livesync/internal/models"
	"github.com/tomtom215/livesync/internal/polling"
	"github.com/tomtom215/livesync/internal/registry"
	"github.com/tomtom215/livesync/internal/syncerr"
	"github.com/tomtom215/livesync/internal/transport"
)

// NotificationsResource is the resource identifier of the admin
// notification channel.
const NotificationsResource = "notifications"

// ErrClosed is returned by operations on a closed Client.
var ErrClosed = errors.New("subscription client closed")

// ErrUnknownRoom is returned by Disconnect when no session is open for the
// room.
var ErrUnknownRoom = errors.New("no session for room")

// Update is what a resource subscriber receives: the current items and, on
// a failed fetch, the error next to the last good items.
type Update struct {
	Resource    string
	Loaded      bool
	Items       []json.RawMessage
	Err         error
	UserMessage string
}

// Status is the consumer-facing connection summary.
type Status struct {
	Connected       bool
	LastConnectedAt time.Time
	LastError       error
}

// Backend is the request/response collaborator: resource fetches, the
// confirmed-write path and room history.
type Backend interface {
	FetchFunc(path string) registry.FetchFunc
	chat.Writer
	chat.HistorySource
}

// OpenerFunc builds the channel opener for one endpoint.
type OpenerFunc func(ep transport.Endpoint) connection.OpenFunc

// Options configures a Client.
type Options struct {
	Registry  *registry.Registry
	Scheduler *polling.Scheduler
	Events    *eventbus.Bus
	Backend   Backend

	Transport config.TransportConfig
	Reconnect config.ReconnectConfig
	Heartbeat config.HeartbeatConfig
	Chat      config.ChatConfig

	// Credential returns the current channel credential. Defaults to the
	// configured transport token.
	Credential func() string
	// Open overrides how channels are dialed.
	Open OpenerFunc
	// ResourcePath maps an admin resource to its REST path. Defaults to
	// "/admin/<resource>".
	ResourcePath func(resourceID string) string
	Now          func() time.Time
}

// Client is the consumer-facing Subscription API.
//
// Chat rooms ("chatroom:<id>") use the push channel when one is configured
// and a credential is available, and poll room history otherwise. Every
// other resource is polled; the admin notification channel, when enabled,
// triggers an immediate refresh of polled resources.
type Client struct {
	opts Options

	// roomMu orders room subscriptions against their release so a session
	// is never closed right after being handed to a new subscriber.
	roomMu sync.Mutex

	mu     sync.Mutex
	rooms  map[models.ID]*chat.Room
	notify *connection.Connection
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Client. Registry and Scheduler are required.
func New(opts Options) *Client {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Credential == nil {
		token := opts.Transport.Token
		opts.Credential = func() string { return token }
	}
	if opts.ResourcePath == nil {
		opts.ResourcePath = func(id string) string { return "/admin/" + id }
	}
	if opts.Open == nil {
		topts := transport.Options{
			RequireCredential: opts.Transport.RequireCredential,
			HandshakeTimeout:  opts.Transport.HandshakeTimeout,
			ReadTimeout:       opts.Transport.ReadTimeout,
			WriteTimeout:      opts.Transport.WriteTimeout,
			MaxMessageSize:    opts.Transport.MaxMessageSize,
			Now:               opts.Now,
		}
		credential := opts.Credential
		opts.Open = func(ep transport.Endpoint) connection.OpenFunc {
			return connection.TransportOpener(ep, credential, topts)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		opts:   opts,
		rooms:  make(map[models.ID]*chat.Room),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SubscribeToResource registers onUpdate for resourceID and returns the
// function that removes it. The subscriber immediately receives cached data
// if it is fresh, otherwise a fetch is started. Polling starts with the
// first subscriber and stops when the last one leaves.
func (c *Client) SubscribeToResource(resourceID string, onUpdate func(Update)) func() {
	listener := registry.Listener{
		OnData: func(items []json.RawMessage) {
			onUpdate(Update{Resource: resourceID, Loaded: true, Items: items})
		},
		OnError: func(err error) {
			u := Update{Resource: resourceID, Err: fetchError(resourceID, err)}
			if snap, ok := c.opts.Registry.Snapshot(resourceID); ok {
				u.Loaded = snap.Loaded
				u.Items = snap.Items
			}
			u.UserMessage = syncerr.UserMessage(u.Err)
			onUpdate(u)
		},
	}

	var (
		fetch registry.FetchFunc
		poll  bool
	)
	roomID, isRoom := roomOf(resourceID)
	if isRoom {
		c.roomMu.Lock()
		room, err := c.Room(roomID)
		if err != nil {
			logging.Warn().Err(err).Str("resource", resourceID).Msg("[subscription] Room unavailable")
		} else {
			poll = !room.Push()
		}
	} else {
		if c.opts.Backend != nil {
			fetch = c.opts.Backend.FetchFunc(c.opts.ResourcePath(resourceID))
		}
		poll = fetch != nil
	}

	h := c.opts.Registry.Subscribe(resourceID, fetch, listener)
	if isRoom {
		c.roomMu.Unlock()
	}
	if poll {
		if _, err := c.opts.Scheduler.Poll(resourceID, 0); err != nil && !errors.Is(err, polling.ErrStopped) {
			logging.Warn().Err(err).Str("resource", resourceID).Msg("[subscription] Failed to start polling")
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if !isRoom {
				c.opts.Registry.Unsubscribe(h)
				return
			}
			c.roomMu.Lock()
			defer c.roomMu.Unlock()
			if c.opts.Registry.Unsubscribe(h) {
				c.releaseIdleRoom(roomID)
			}
		})
	}
}

// releaseIdleRoom closes the session of a room nobody watches any more.
// Configured rooms and rooms with unconfirmed writes stay open. Callers hold
// roomMu.
func (c *Client) releaseIdleRoom(roomID models.ID) {
	for _, id := range c.opts.Chat.Rooms {
		if models.ID(id) == roomID {
			return
		}
	}
	snap, ok := c.opts.Registry.Snapshot(chat.ResourceID(roomID))
	if !ok || snap.Listeners > 0 || snap.Pending > 0 {
		return
	}
	if err := c.Disconnect(roomID); err != nil && !errors.Is(err, ErrUnknownRoom) {
		logging.Debug().Err(err).Str("room", string(roomID)).Msg("[subscription] Idle room release failed")
	}
}

// Subscribe registers onEvent for a named event (chat_message, room_status,
// room_list, error, connection_status) and returns the function that
// removes it.
func (c *Client) Subscribe(eventName string, onEvent func(eventbus.Event)) func() {
	if c.opts.Events == nil {
		return func() {}
	}
	unsubscribe, err := c.opts.Events.Subscribe(eventName, onEvent)
	if err != nil {
		logging.Warn().Err(err).Str("event", eventName).Msg("[subscription] Event subscription failed")
		return func() {}
	}
	return unsubscribe
}

// RequestRefresh fetches resourceID out of band. It returns immediately;
// the outcome reaches subscribers as an update.
func (c *Client) RequestRefresh(resourceID string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		if err := c.opts.Scheduler.Refresh(c.ctx, resourceID); err != nil {
			logging.Debug().Err(err).Str("resource", resourceID).Msg("[subscription] Refresh failed")
		}
	}()
}

// ConnectionStatus summarizes every push channel. Connected is true while
// any channel is Open; LastError is the most recent failure of a channel
// that is not Open.
func (c *Client) ConnectionStatus() Status {
	var (
		st      Status
		errAt   time.Time
		lastErr error
	)
	for _, cs := range c.Channels() {
		if cs.Connected {
			st.Connected = true
		}
		if cs.LastConnectedAt.After(st.LastConnectedAt) {
			st.LastConnectedAt = cs.LastConnectedAt
		}
		if cs.LastError != nil && !cs.Connected && (lastErr == nil || cs.LastConnectedAt.After(errAt)) {
			lastErr = cs.LastError
			errAt = cs.LastConnectedAt
		}
	}
	st.LastError = lastErr
	return st
}

// Channels returns the status of every push channel, sorted by resource.
func (c *Client) Channels() []connection.Status {
	c.mu.Lock()
	out := make([]connection.Status, 0, len(c.rooms)+1)
	for _, r := range c.rooms {
		if r.Push() {
			out = append(out, r.Status())
		}
	}
	if c.notify != nil {
		out = append(out, c.notify.Status())
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}

// Send sends content to a room, optimistically.
func (c *Client) Send(ctx context.Context, roomID models.ID, content string) (chat.PendingMessage, error) {
	room, err := c.Room(roomID)
	if err != nil {
		return chat.PendingMessage{}, err
	}
	return room.Send(ctx, content)
}

// RetrySend re-sends a failed message.
func (c *Client) RetrySend(ctx context.Context, roomID models.ID, localID string) (chat.PendingMessage, error) {
	room, err := c.Room(roomID)
	if err != nil {
		return chat.PendingMessage{}, err
	}
	return room.RetrySend(ctx, localID)
}

// Reconnect manually retries a room channel after Failed.
func (c *Client) Reconnect(ctx context.Context, roomID models.ID) error {
	room, err := c.Room(roomID)
	if err != nil {
		return err
	}
	return room.Reconnect(ctx)
}

// Room returns the session for roomID, creating and starting it on first use.
func (c *Client) Room(roomID models.ID) (*chat.Room, error) {
	if roomID == "" {
		return nil, errors.New("room id is required")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if r, ok := c.rooms[roomID]; ok {
		c.mu.Unlock()
		return r, nil
	}

	opts := chat.RoomOptions{
		RoomID:      roomID,
		Sender:      models.SenderCustomer,
		Policy:      c.policy(),
		Heartbeat:   connection.HeartbeatConfig{Interval: c.opts.Heartbeat.Interval, Timeout: c.opts.Heartbeat.Timeout},
		Registry:    c.opts.Registry,
		Events:      c.events(),
		MatchWindow: c.opts.Chat.MatchWindow,
		Now:         c.opts.Now,
	}
	if c.opts.Backend != nil {
		opts.Writer = c.opts.Backend
		opts.History = c.opts.Backend
	}
	if c.pushAvailable() {
		opts.Open = c.opts.Open(transport.Endpoint{
			Resource: chat.ResourceID(roomID),
			URL:      transport.EndpointURL(c.opts.Transport.URL, "chat", string(roomID)),
		})
	}
	r := chat.NewRoom(opts)
	c.rooms[roomID] = r
	c.mu.Unlock()

	if err := r.Start(c.ctx); err != nil {
		logging.Warn().Err(err).Str("resource", r.Resource()).Msg("[subscription] Room channel did not start")
	}
	logging.Info().Str("resource", r.Resource()).Bool("push", r.Push()).Msg("[subscription] Room session created")
	return r, nil
}

// Disconnect closes the session for roomID and forgets it. The next use of
// the room opens a fresh session.
func (c *Client) Disconnect(roomID models.ID) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	r, ok := c.rooms[roomID]
	if ok {
		delete(c.rooms, roomID)
	}
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("disconnect %s: %w", roomID, ErrUnknownRoom)
	}
	r.Close()
	logging.Info().Str("resource", r.Resource()).Msg("[subscription] Room session closed")
	return nil
}

// Rooms returns the ids of the open room sessions, sorted.
func (c *Client) Rooms() []models.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]models.ID, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Start opens the admin notification channel when enabled and the
// configured rooms.
func (c *Client) Start() error {
	if c.opts.Transport.Notifications && c.pushAvailable() {
		conn := connection.New(connection.Options{
			Resource: NotificationsResource,
			Open: c.opts.Open(transport.Endpoint{
				Resource: NotificationsResource,
				URL:      transport.EndpointURL(c.opts.Transport.URL, "admin", NotificationsResource),
			}),
			Policy:        c.policy(),
			Heartbeat:     connection.HeartbeatConfig{Interval: c.opts.Heartbeat.Interval, Timeout: c.opts.Heartbeat.Timeout},
			Now:           c.opts.Now,
			OnFrame:       c.handleNotification,
			OnStateChange: c.notificationState,
		})
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		c.notify = conn
		c.mu.Unlock()
		if err := conn.Connect(c.ctx); err != nil {
			return fmt.Errorf("start notifications: %w", err)
		}
	}

	for _, id := range c.opts.Chat.Rooms {
		if _, err := c.Room(models.ID(id)); err != nil {
			return err
		}
	}
	return nil
}

// Serve implements suture.Service: it starts the client and closes it when
// ctx is done.
func (c *Client) Serve(ctx context.Context) error {
	if err := c.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	c.Close()
	return ctx.Err()
}

// Close closes every channel, cancelling pending reconnections, and waits
// for outstanding refreshes.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	rooms := make([]*chat.Room, 0, len(c.rooms))
	for _, r := range c.rooms {
		rooms = append(rooms, r)
	}
	notify := c.notify
	c.mu.Unlock()

	for _, r := range rooms {
		r.Close()
	}
	if notify != nil {
		notify.Close()
	}
	c.cancel()
	c.wg.Wait()
}

func (c *Client) pushAvailable() bool {
	if !c.opts.Transport.PushEnabled() {
		return false
	}
	return !c.opts.Transport.RequireCredential || c.opts.Credential() != ""
}

func (c *Client) policy() connection.Policy {
	return connection.Policy{MaxAttempts: c.opts.Reconnect.MaxAttempts, Delay: c.opts.Reconnect.Delay}
}

// events avoids storing a typed nil *eventbus.Bus in the room's interface.
func (c *Client) events() chat.Publisher {
	if c.opts.Events == nil {
		return nil
	}
	return c.opts.Events
}

// handleNotification forwards admin notification frames to the event bus
// and refreshes every polled resource.
func (c *Client) handleNotification(f transport.Frame) {
	switch fr := f.(type) {
	case transport.HeartbeatFrame, transport.UnknownFrame:
		return
	case transport.RoomStatusFrame:
		c.emit(fr.Type, eventbus.RoomStatusEvent{Rooms: fr.Rooms, ConnectionStatus: fr.ConnectionStatus})
	case transport.ErrorFrame:
		c.emit(eventbus.ServerError, eventbus.ServerErrorEvent{Message: fr.Message})
		return
	case transport.ChatMessageFrame:
		if r := c.existingRoom(fr.Message.RoomID); r != nil {
			r.ApplyMessage(fr.Message)
		}
	}

	for _, id := range c.opts.Registry.Resources() {
		if c.opts.Scheduler.Polling(id) {
			c.RequestRefresh(id)
		}
	}
}

func (c *Client) notificationState(oldState, newState connection.State) {
	ev := eventbus.ConnectionStatusEvent{
		Resource: NotificationsResource,
		State:    newState.String(),
		Previous: oldState.String(),
		At:       c.opts.Now(),
	}
	c.mu.Lock()
	conn := c.notify
	c.mu.Unlock()
	if newState == connection.StateFailed && conn != nil {
		if err := conn.Status().LastError; err != nil {
			ev.Error = err.Error()
			ev.UserMessage = syncerr.UserMessage(err)
		}
	}
	c.emit(eventbus.ConnectionStatus, ev)
}

func (c *Client) existingRoom(id models.ID) *chat.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[id]
}

func (c *Client) emit(name string, payload interface{}) {
	if c.opts.Events == nil {
		return
	}
	if err := c.opts.Events.Publish(name, payload); err != nil && !errors.Is(err, eventbus.ErrClosed) {
		logging.Warn().Err(err).Str("event", name).Msg("[subscription] Failed to publish event")
	}
}

// roomOf extracts the room id from a chat room resource identifier.
func roomOf(resourceID string) (models.ID, bool) {
	id, ok := strings.CutPrefix(resourceID, chat.ResourcePrefix)
	if !ok || id == "" {
		return "", false
	}
	return models.ID(id), true
}

// fetchError classifies a raw fetch failure so it carries a user message.
func fetchError(resourceID string, err error) error {
	if err == nil || syncerr.KindOf(err) != syncerr.KindUnknown {
		return err
	}
	return syncerr.New(syncerr.FetchError, "fetch", resourceID, err)
}
