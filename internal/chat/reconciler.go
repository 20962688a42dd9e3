// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package chat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/livesync/internal/cache"
	"github.com/tomtom215/livesync/internal/metrics"
	"github.com/tomtom215/livesync/internal/models"
)

// LocalIDPrefix prefixes every optimistic message identifier.
const LocalIDPrefix = "temp_"

// DefaultMatchWindow bounds the created_at distance for heuristic echo matching.
const DefaultMatchWindow = 30 * time.Second

var (
	// ErrUnknownLocalID is returned for a local id the reconciler never issued.
	ErrUnknownLocalID = errors.New("unknown local message id")
	// ErrAlreadyConfirmed is returned when retrying a message the server confirmed.
	ErrAlreadyConfirmed = errors.New("message already confirmed")
)

// Outcome is the result of reconciling one inbound message.
type Outcome int

const (
	// Appended means the message was new and added at the end.
	Appended Outcome = iota
	// Duplicate means a message with the same server id was already visible.
	Duplicate
	// Confirmed means the message replaced a pending optimistic entry in place.
	Confirmed
)

// String returns the outcome label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case Appended:
		return "appended"
	case Duplicate:
		return "duplicate"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// ItemState describes where a visible message is in its lifecycle.
type ItemState string

const (
	StatePending   ItemState = "pending"
	StateFailed    ItemState = "failed"
	StateConfirmed ItemState = "confirmed"
)

// Item is one entry of the visible message sequence. ID is empty until the
// server confirms the message; LocalID is set for messages sent from here.
type Item struct {
	models.Message
	LocalID string    `json:"local_id,omitempty"`
	State   ItemState `json:"state"`
	Error   string    `json:"error,omitempty"`
}

// Key returns the server id, or the local id while unconfirmed.
func (it Item) Key() string {
	if it.ID != "" {
		return string(it.ID)
	}
	return it.LocalID
}

// PendingMessage is an optimistic send awaiting its authoritative echo.
type PendingMessage struct {
	LocalID     string
	Content     string
	Sender      models.SenderKind
	CreatedAt   time.Time
	ConfirmedID models.ID
	Failed      bool
	Err         error
}

// MatchFunc picks the pending message an inbound message confirms. It
// returns the index into candidates, or -1 for no match. Candidates are in
// insertion order and never include confirmed messages.
type MatchFunc func(msg models.Message, candidates []PendingMessage) int

// MatchPending is the default strategy.
//
// An echoed client id equal to a candidate's local id wins outright.
// Otherwise the most recent candidate with the same content and a
// compatible sender is chosen; a sender is compatible when either side is
// unset or both are equal. When both timestamps are known they must be
// within window of each other.
func MatchPending(window time.Duration) MatchFunc {
	return func(msg models.Message, candidates []PendingMessage) int {
		if msg.ClientID != "" {
			for i := range candidates {
				if candidates[i].LocalID == msg.ClientID {
					return i
				}
			}
		}

		for i := len(candidates) - 1; i >= 0; i-- {
			p := candidates[i]
			if p.Content != msg.Content {
				continue
			}
			if msg.SenderKind != "" && p.Sender != "" && msg.SenderKind != p.Sender {
				continue
			}
			if window > 0 && !msg.CreatedAt.IsZero() && !p.CreatedAt.IsZero() {
				d := msg.CreatedAt.Sub(p.CreatedAt)
				if d < 0 {
					d = -d
				}
				if d > window {
					continue
				}
			}
			return i
		}
		return -1
	}
}

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	RoomID models.ID
	Sender models.SenderKind // sender kind of messages sent from this client
	Match  MatchFunc
	Now    func() time.Time

	// ResolvedIDs bounds the local-to-server id map kept after confirmation.
	ResolvedIDs   int
	ResolvedIDTTL time.Duration
}

// Reconciler maintains the visible message sequence of one room.
//
// Inbound messages are appended in arrival order unless their server id is
// already visible (dropped) or they confirm a pending optimistic message
// (replaced in place, keeping its position).
type Reconciler struct {
	opts ReconcilerOptions

	mu        sync.Mutex
	items     []Item
	byID      map[models.ID]int
	pending   map[string]int // local id -> index into items
	pendingAt []string       // local ids in insertion order
	lastLocal int64
	messages  map[string]PendingMessage

	resolved *cache.LRU[models.ID]
}

// NewReconciler creates an empty reconciler.
func NewReconciler(opts ReconcilerOptions) *Reconciler {
	if opts.Match == nil {
		opts.Match = MatchPending(DefaultMatchWindow)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sender == "" {
		opts.Sender = models.SenderCustomer
	}
	return &Reconciler{
		opts:     opts,
		byID:     make(map[models.ID]int),
		pending:  make(map[string]int),
		messages: make(map[string]PendingMessage),
		resolved: cache.NewLRU[models.ID](opts.ResolvedIDs, opts.ResolvedIDTTL).WithClock(opts.Now),
	}
}

// AddOptimistic inserts a pending message at the end of the visible
// sequence and returns it. Local ids are temp_<unix ms>, bumped by one
// millisecond when two sends land in the same millisecond.
func (r *Reconciler) AddOptimistic(content string) PendingMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.Now()
	ms := now.UnixMilli()
	if ms <= r.lastLocal {
		ms = r.lastLocal + 1
	}
	r.lastLocal = ms

	p := PendingMessage{
		LocalID:   LocalIDPrefix + strconv.FormatInt(ms, 10),
		Content:   content,
		Sender:    r.opts.Sender,
		CreatedAt: now,
	}

	r.pending[p.LocalID] = len(r.items)
	r.pendingAt = append(r.pendingAt, p.LocalID)
	r.messages[p.LocalID] = p
	r.items = append(r.items, Item{
		Message: models.Message{
			RoomID:     r.opts.RoomID,
			SenderKind: p.Sender,
			Content:    content,
			CreatedAt:  now,
		},
		LocalID: p.LocalID,
		State:   StatePending,
	})
	return p
}

// ApplyInbound reconciles one server-confirmed message.
func (r *Reconciler) ApplyInbound(msg models.Message) Outcome {
	outcome, _ := r.Reconcile(msg)
	return outcome
}

// Reconcile is ApplyInbound that also returns the local id the message
// confirmed, or "" unless the outcome is Confirmed.
func (r *Reconciler) Reconcile(msg models.Message) (Outcome, string) {
	r.mu.Lock()
	outcome, localID := r.applyLocked(msg)
	r.mu.Unlock()

	metrics.RecordReconcile(outcome.String())
	return outcome, localID
}

// MergeHistory reconciles a batch of messages from the request/response
// path through the same rules as pushed messages, in the given order.
func (r *Reconciler) MergeHistory(msgs []models.Message) (appended, duplicates, confirmed int) {
	r.mu.Lock()
	outcomes := make([]Outcome, 0, len(msgs))
	for _, m := range msgs {
		o, _ := r.applyLocked(m)
		outcomes = append(outcomes, o)
	}
	r.mu.Unlock()

	for _, o := range outcomes {
		metrics.RecordReconcile(o.String())
		switch o {
		case Appended:
			appended++
		case Duplicate:
			duplicates++
		case Confirmed:
			confirmed++
		}
	}
	return appended, duplicates, confirmed
}

// Confirm applies the response of a confirmed write for localID. The
// response is matched to localID even if the server did not echo it.
func (r *Reconciler) Confirm(localID string, msg models.Message) Outcome {
	if msg.ClientID == "" {
		msg.ClientID = localID
	}
	outcome, _ := r.Reconcile(msg)
	return outcome
}

// MarkFailed flags a pending message as failed. The message stays visible.
func (r *Reconciler) MarkFailed(localID string, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.pending[localID]
	if !ok {
		return false
	}
	p := r.messages[localID]
	p.Failed = true
	p.Err = err
	r.messages[localID] = p

	r.items[idx].State = StateFailed
	if err != nil {
		r.items[idx].Error = err.Error()
	}
	return true
}

// Retry clears the failed flag of a pending message and returns it for
// resending. The message keeps its position and local id.
func (r *Reconciler) Retry(localID string) (PendingMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.pending[localID]
	if !ok {
		if _, done := r.resolved.Get(localID); done {
			return PendingMessage{}, fmt.Errorf("retry %s: %w", localID, ErrAlreadyConfirmed)
		}
		return PendingMessage{}, fmt.Errorf("retry %s: %w", localID, ErrUnknownLocalID)
	}
	p := r.messages[localID]
	p.Failed = false
	p.Err = nil
	r.messages[localID] = p

	r.items[idx].State = StatePending
	r.items[idx].Error = ""
	return p, nil
}

// ResolveID returns the server id that confirmed localID.
func (r *Reconciler) ResolveID(localID string) (models.ID, bool) {
	return r.resolved.Get(localID)
}

// Pending returns the unconfirmed messages in insertion order.
func (r *Reconciler) Pending() []PendingMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.candidatesLocked()
}

// Items returns a copy of the visible sequence.
func (r *Reconciler) Items() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Item, len(r.items))
	copy(out, r.items)
	return out
}

// Len returns the number of visible messages.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Reconciler) applyLocked(msg models.Message) (Outcome, string) {
	if msg.ID != "" {
		if _, seen := r.byID[msg.ID]; seen {
			return Duplicate, ""
		}
	}
	if msg.RoomID == "" {
		msg.RoomID = r.opts.RoomID
	}

	candidates := r.candidatesLocked()
	if i := r.opts.Match(msg, candidates); i >= 0 && i < len(candidates) {
		localID := candidates[i].LocalID
		idx := r.pending[localID]

		r.items[idx] = Item{Message: msg, LocalID: localID, State: StateConfirmed}
		if msg.ID != "" {
			r.byID[msg.ID] = idx
			r.resolved.Add(localID, msg.ID)
		}
		delete(r.pending, localID)
		delete(r.messages, localID)
		r.removePendingOrder(localID)
		return Confirmed, localID
	}

	r.items = append(r.items, Item{Message: msg, State: StateConfirmed})
	if msg.ID != "" {
		r.byID[msg.ID] = len(r.items) - 1
	}
	return Appended, ""
}

func (r *Reconciler) candidatesLocked() []PendingMessage {
	out := make([]PendingMessage, 0, len(r.pendingAt))
	for _, id := range r.pendingAt {
		out = append(out, r.messages[id])
	}
	return out
}

func (r *Reconciler) removePendingOrder(localID string) {
	for i, id := range r.pendingAt {
		if id == localID {
			r.pendingAt = append(r.pendingAt[:i], r.pendingAt[i+1:]...)
			return
		}
	}
}

// IsLocalID reports whether id has the optimistic local id form.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}
