// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package chat

import (
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/livesync/internal/models"
)

// helloTime is 1700000000000 ms since the epoch.
var helloTime = time.UnixMilli(1700000000000)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func checkIntEqual(t *testing.T, fieldName string, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %d, want %d", fieldName, got, want)
	}
}

func checkStringEqual(t *testing.T, fieldName, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %q, want %q", fieldName, got, want)
	}
}

func checkOutcome(t *testing.T, got, want Outcome) {
	t.Helper()
	if got != want {
		t.Errorf("outcome = %s, want %s", got, want)
	}
}

func msg(id, content string) models.Message {
	return models.Message{ID: models.ID(id), Content: content}
}

func TestReconciler_NoDuplicateDelivery(t *testing.T) {
	r := NewReconciler(ReconcilerOptions{RoomID: "42"})

	// Channel retries and push/poll races repeat ids.
	ids := []string{"1", "2", "1", "3", "2", "3", "3"}
	for _, id := range ids {
		r.ApplyInbound(msg(id, "m"+id))
	}

	items := r.Items()
	checkIntEqual(t, "visible messages", len(items), 3)
	seen := make(map[string]int)
	for _, it := range items {
		seen[it.Key()]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("id %s visible %d times", id, n)
		}
	}
	for i, want := range []string{"1", "2", "3"} {
		checkStringEqual(t, "arrival order", items[i].Key(), want)
	}
}

func TestReconciler_DuplicateOutcome(t *testing.T) {
	r := NewReconciler(ReconcilerOptions{})
	checkOutcome(t, r.ApplyInbound(msg("7", "a")), Appended)
	checkOutcome(t, r.ApplyInbound(msg("7", "a")), Duplicate)

	// Messages without a server id cannot be deduplicated.
	checkOutcome(t, r.ApplyInbound(msg("", "b")), Appended)
	checkOutcome(t, r.ApplyInbound(msg("", "b")), Appended)
	checkIntEqual(t, "Len", r.Len(), 3)
}

func TestReconciler_OptimisticReplaceNotAppend(t *testing.T) {
	r := NewReconciler(ReconcilerOptions{RoomID: "42"})

	p := r.AddOptimistic("where is my order?")
	checkIntEqual(t, "after optimistic", r.Len(), 1)
	checkStringEqual(t, "pending state", string(r.Items()[0].State), string(StatePending))

	checkOutcome(t, r.ApplyInbound(msg("981", "where is my order?")), Confirmed)
	checkIntEqual(t, "after echo", r.Len(), 1)

	it := r.Items()[0]
	checkStringEqual(t, "id", string(it.ID), "981")
	checkStringEqual(t, "local id kept", it.LocalID, p.LocalID)
	checkStringEqual(t, "state", string(it.State), string(StateConfirmed))
	checkStringEqual(t, "room id filled", string(it.RoomID), "42")
	checkIntEqual(t, "pending left", len(r.Pending()), 0)
}

func TestReconciler_HelloScenario(t *testing.T) {
	r := NewReconciler(ReconcilerOptions{RoomID: "42", Now: fixedNow(helloTime)})

	p := r.AddOptimistic("hello")
	checkStringEqual(t, "local id", p.LocalID, "temp_1700000000000")

	checkOutcome(t, r.ApplyInbound(models.Message{ID: "srv-1", Content: "hello"}), Confirmed)

	items := r.Items()
	checkIntEqual(t, "visible messages", len(items), 1)
	checkStringEqual(t, "content", items[0].Content, "hello")
	checkStringEqual(t, "final id", string(items[0].ID), "srv-1")

	id, ok := r.ResolveID("temp_1700000000000")
	if !ok || id != "srv-1" {
		t.Errorf("ResolveID = %q, %v", id, ok)
	}

	// A late duplicate of the echo changes nothing.
	checkOutcome(t, r.ApplyInbound(models.Message{ID: "srv-1", Content: "hello"}), Duplicate)
	checkIntEqual(t, "after duplicate", r.Len(), 1)
}

func TestReconciler_ConfirmKeepsPosition(t *testing.T) {
	clock := helloTime
	r := NewReconciler(ReconcilerOptions{Now: func() time.Time { return clock }})

	r.ApplyInbound(msg("1", "hi, how can I help?"))
	p := r.AddOptimistic("my parcel is late")
	r.ApplyInbound(msg("2", "let me check"))
	r.ApplyInbound(models.Message{ID: "3", Content: "my parcel is late", ClientID: p.LocalID})

	items := r.Items()
	checkIntEqual(t, "visible messages", len(items), 3)
	for i, want := range []string{"1", "3", "2"} {
		checkStringEqual(t, "position", items[i].Key(), want)
	}
}

func TestReconciler_LocalIDsUnique(t *testing.T) {
	r := NewReconciler(ReconcilerOptions{Now: fixedNow(helloTime)})

	a := r.AddOptimistic("one")
	b := r.AddOptimistic("two")
	c := r.AddOptimistic("three")

	checkStringEqual(t, "first", a.LocalID, "temp_1700000000000")
	checkStringEqual(t, "second", b.LocalID, "temp_1700000000001")
	checkStringEqual(t, "third", c.LocalID, "temp_1700000000002")
	if !IsLocalID(a.LocalID) || IsLocalID("srv-1") {
		t.Error("IsLocalID misclassified an id")
	}
}

func TestReconciler_SameContentConfirmsMostRecent(t *testing.T) {
	now := helloTime
	r := NewReconciler(ReconcilerOptions{Now: func() time.Time { return now }})

	first := r.AddOptimistic("ok")
	now = now.Add(time.Second)
	second := r.AddOptimistic("ok")

	r.ApplyInbound(msg("10", "ok"))

	pending := r.Pending()
	checkIntEqual(t, "pending", len(pending), 1)
	checkStringEqual(t, "older still pending", pending[0].LocalID, first.LocalID)
	if id, _ := r.ResolveID(second.LocalID); id != "10" {
		t.Errorf("most recent pending resolved to %q, want 10", id)
	}
}

func TestMatchPending(t *testing.T) {
	base := helloTime
	candidates := []PendingMessage{
		{LocalID: "temp_1", Content: "hello", Sender: models.SenderCustomer, CreatedAt: base},
		{LocalID: "temp_2", Content: "hello", Sender: models.SenderCustomer, CreatedAt: base.Add(time.Second)},
		{LocalID: "temp_3", Content: "bye", Sender: models.SenderCustomer, CreatedAt: base.Add(2 * time.Second)},
	}
	match := MatchPending(time.Minute)

	tests := []struct {
		name string
		msg  models.Message
		want int
	}{
		{"client id wins over content", models.Message{Content: "bye", ClientID: "temp_1"}, 0},
		{"most recent same content", models.Message{Content: "hello"}, 1},
		{"sender unset matches", models.Message{Content: "bye"}, 2},
		{"same sender matches", models.Message{Content: "bye", SenderKind: models.SenderCustomer}, 2},
		{"different sender", models.Message{Content: "hello", SenderKind: models.SenderAdmin}, -1},
		{"different content", models.Message{Content: "thanks"}, -1},
		{"within window", models.Message{Content: "hello", CreatedAt: base.Add(30 * time.Second)}, 1},
		{"outside window", models.Message{Content: "hello", CreatedAt: base.Add(5 * time.Minute)}, -1},
		{"unknown client id falls back", models.Message{Content: "bye", ClientID: "temp_9"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkIntEqual(t, "match", match(tt.msg, candidates), tt.want)
		})
	}

	checkIntEqual(t, "no candidates", match(models.Message{Content: "hello"}, nil), -1)
}

func TestReconciler_FailedAndRetry(t *testing.T) {
	r := NewReconciler(ReconcilerOptions{Now: fixedNow(helloTime)})
	p := r.AddOptimistic("hello")

	sendErr := errors.New("connection refused")
	if !r.MarkFailed(p.LocalID, sendErr) {
		t.Fatal("MarkFailed returned false")
	}
	it := r.Items()[0]
	checkStringEqual(t, "state", string(it.State), string(StateFailed))
	checkStringEqual(t, "error", it.Error, "connection refused")
	checkIntEqual(t, "failed message stays visible", r.Len(), 1)
	if pend := r.Pending(); len(pend) != 1 || !pend[0].Failed {
		t.Errorf("pending = %+v", pend)
	}

	retried, err := r.Retry(p.LocalID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	checkStringEqual(t, "retry keeps local id", retried.LocalID, p.LocalID)
	checkStringEqual(t, "state after retry", string(r.Items()[0].State), string(StatePending))

	r.Confirm(p.LocalID, models.Message{ID: "srv-9", Content: "hello"})
	if _, err := r.Retry(p.LocalID); !errors.Is(err, ErrAlreadyConfirmed) {
		t.Errorf("Retry after confirm = %v", err)
	}
	if _, err := r.Retry("temp_42"); !errors.Is(err, ErrUnknownLocalID) {
		t.Errorf("Retry unknown = %v", err)
	}
	if r.MarkFailed("temp_42", sendErr) {
		t.Error("MarkFailed on unknown id returned true")
	}
}

func TestReconciler_MergeHistory(t *testing.T) {
	r := NewReconciler(ReconcilerOptions{Now: fixedNow(helloTime)})

	r.ApplyInbound(msg("1", "welcome"))
	r.AddOptimistic("is it in stock?")

	appended, duplicates, confirmed := r.MergeHistory([]models.Message{
		msg("1", "welcome"),
		msg("2", "is it in stock?"),
		msg("3", "yes"),
	})
	checkIntEqual(t, "appended", appended, 1)
	checkIntEqual(t, "duplicates", duplicates, 1)
	checkIntEqual(t, "confirmed", confirmed, 1)
	checkIntEqual(t, "visible", r.Len(), 3)

	// The same page again is a no-op.
	appended, duplicates, confirmed = r.MergeHistory([]models.Message{msg("1", ""), msg("2", ""), msg("3", "")})
	checkIntEqual(t, "second appended", appended, 0)
	checkIntEqual(t, "second duplicates", duplicates, 3)
	checkIntEqual(t, "second confirmed", confirmed, 0)
}

func TestReconciler_DefaultMatchWindow(t *testing.T) {
	if DefaultMatchWindow != 30*time.Second {
		t.Errorf("DefaultMatchWindow = %v, want 30s", DefaultMatchWindow)
	}

	tests := []struct {
		name string
		lag  time.Duration
		want Outcome
	}{
		{"echo inside window", 20 * time.Second, Confirmed},
		{"echo outside window", 45 * time.Second, Appended},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReconciler(ReconcilerOptions{RoomID: "42", Now: fixedNow(helloTime)})
			r.AddOptimistic("hello")

			echo := models.Message{
				ID:         "srv-1",
				RoomID:     "42",
				SenderKind: models.SenderCustomer,
				Content:    "hello",
				CreatedAt:  helloTime.Add(tt.lag),
			}
			checkOutcome(t, r.ApplyInbound(echo), tt.want)
		})
	}
}
