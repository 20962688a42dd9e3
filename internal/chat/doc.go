// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

/*
Package chat keeps the visible message sequence of a support chat room in
step with the server.

# Reconciliation

A send is shown at once as a pending message with a local id of the form
temp_<unix ms>. When the server's copy arrives, over the push channel or in
a history page, it replaces the pending entry in place; the entry keeps its
position in the sequence. Matching prefers an echoed client id and falls
back to the most recent pending message with the same content and sender
(see MatchPending). A server id that is already visible is dropped, so a
retried frame or a push/poll race never shows a message twice.

# Sending

Room.Send writes over the push channel when it is Open. Otherwise the
message is posted through the Writer. If that fails too, the message stays
visible in the failed state and a retryable SendFailure is returned;
Room.RetrySend tries again with the same local id.

# Registry integration

Each room publishes its sequence to the registry resource chatroom:<id>.
When a HistorySource is configured the room also installs the fetch
function for that resource, so polling and manual refreshes merge history
through the same reconciliation rules.
*/
package chat
