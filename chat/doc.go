// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat is the core of the Palaver Go client SDK: the local
// state reconciliation layer that turns a stream of out-of-order,
// partial server events into a consistent in-memory view of one
// authenticated chat session.
//
// [Manager] is the session entry point. Connect subscribes to the
// session event stream, waits for the initial_state snapshot, and
// returns a [CurrentUser] — the facade for all REST-backed operations
// (room management, membership, messaging, typing indicators, message
// history).
//
// State lives in two kinds of stores. [GlobalUserStore] caches user
// records session-wide; [RoomStore] caches room records. Both enforce
// the single-instance invariant: at most one live record per ID, with
// merges mutating the existing instance in place rather than replacing
// it, so every holder of a *User or *Room observes later updates.
// Concurrent fetches for the same user collapse into one request, and
// batch fetches settle every member before returning, dropping (not
// propagating) individual failures.
//
// [MessageEnricher] joins lightweight message records with user
// records that are fetched asynchronously and may arrive after the
// message itself. Batch enrichment is per-message independent: one
// unresolvable sender drops that message only, and the surviving
// batch is returned sorted ascending by message ID (chronological
// order, since IDs are server-assigned and monotonic).
//
// Realtime events arrive through three subscription handlers: the
// session stream (room membership and profile events), per-room
// streams ([RoomSubscription]: messages, membership, typing, room
// lifecycle), and the presence stream ([PresenceSubscription]).
// Handlers apply events in delivery order and notify the
// caller-supplied [Delegate] / [RoomDelegate] callbacks. Events that
// reference unknown rooms or users are logged no-ops — the stream
// keeps flowing past stale references. Unknown event names are
// ignored for forward compatibility. Malformed payloads surface as
// [*DeserializationError] through the delegate's Error callback
// without ending the subscription.
//
// The transport is a collaborator, not part of this package:
// [Instance] abstracts REST calls and realtime subscriptions. The
// canonical implementation is in the transport package; tests use
// fakes. Backend errors are returned as [*APIError] with the server's
// error code and HTTP status; [IsAPIError] tests for a specific code.
package chat
