// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"net/url"
	"sync/atomic"
	"testing"
)

func TestEnrich(t *testing.T) {
	t.Run("resolves from the room member cache", func(t *testing.T) {
		instance := &fakeInstance{
			request: func(_ context.Context, _, path string, _ url.Values, _ any) ([]byte, error) {
				t.Errorf("unexpected request for cached sender: %s", path)
				return nil, nil
			},
		}
		store := NewGlobalUserStore(instance, testLogger())
		room := mustParseRoom(t, roomJSON(42, "general", "alice", false, "alice"))
		alice := testUser("alice", "Alice")
		room.Users.AddOrMerge(alice)

		enricher := NewMessageEnricher(store, room, testLogger())
		message, err := enricher.Enrich(context.Background(), BasicMessage{ID: 1, SenderID: "alice", RoomID: 42, Text: "hi"})
		if err != nil {
			t.Fatalf("Enrich failed: %v", err)
		}
		if message.Sender != alice {
			t.Error("sender must be the cached member instance")
		}
		if message.Text != "hi" {
			t.Errorf("unexpected text: %q", message.Text)
		}
	})

	t.Run("falls back to the global store and caches the member", func(t *testing.T) {
		instance := &fakeInstance{
			request: func(_ context.Context, _, path string, _ url.Values, _ any) ([]byte, error) {
				if path != "/users/bob" {
					t.Errorf("unexpected path: %s", path)
				}
				return userJSON("bob", "Bob"), nil
			},
		}
		store := NewGlobalUserStore(instance, testLogger())
		room := mustParseRoom(t, roomJSON(42, "general", "alice", false, "alice"))

		enricher := NewMessageEnricher(store, room, testLogger())
		message, err := enricher.Enrich(context.Background(), BasicMessage{ID: 2, SenderID: "bob", RoomID: 42, Text: "hey"})
		if err != nil {
			t.Fatalf("Enrich failed: %v", err)
		}
		if message.Sender == nil || message.Sender.Name() != "Bob" {
			t.Fatalf("unexpected sender: %v", message.Sender)
		}
		// The resolved sender lands in the room's member cache so the
		// next message from bob resolves without a round trip.
		if room.Users.Get("bob") != message.Sender {
			t.Error("resolved sender must be cached on the room")
		}
	})

	t.Run("unresolvable sender fails the message", func(t *testing.T) {
		instance := &fakeInstance{
			request: func(_ context.Context, _, _ string, _ url.Values, _ any) ([]byte, error) {
				return nil, &APIError{Code: ErrCodeNotFound, StatusCode: 404}
			},
		}
		store := NewGlobalUserStore(instance, testLogger())
		room := mustParseRoom(t, roomJSON(42, "general", "alice", false))

		enricher := NewMessageEnricher(store, room, testLogger())
		_, err := enricher.Enrich(context.Background(), BasicMessage{ID: 3, SenderID: "ghost", RoomID: 42})
		if !IsAPIError(err, ErrCodeNotFound) {
			t.Errorf("expected not_found API error, got %v", err)
		}
	})
}

func TestEnrichAll(t *testing.T) {
	t.Run("drops failed messages and keeps the rest", func(t *testing.T) {
		instance := &fakeInstance{
			request: func(_ context.Context, _, path string, _ url.Values, _ any) ([]byte, error) {
				switch path {
				case "/users/alice":
					return userJSON("alice", "Alice"), nil
				case "/users/bob":
					return nil, &APIError{Code: ErrCodeNotFound, StatusCode: 404}
				case "/users/carol":
					return userJSON("carol", "Carol"), nil
				}
				t.Errorf("unexpected path: %s", path)
				return nil, nil
			},
		}
		store := NewGlobalUserStore(instance, testLogger())
		room := mustParseRoom(t, roomJSON(42, "general", "alice", false))

		enricher := NewMessageEnricher(store, room, testLogger())
		messages := enricher.EnrichAll(context.Background(), []BasicMessage{
			{ID: 1, SenderID: "alice", RoomID: 42, Text: "one"},
			{ID: 2, SenderID: "bob", RoomID: 42, Text: "two"},
			{ID: 3, SenderID: "carol", RoomID: 42, Text: "three"},
		})
		if len(messages) != 2 {
			t.Fatalf("expected 2 surviving messages, got %d", len(messages))
		}
		if messages[0].ID != 1 || messages[1].ID != 3 {
			t.Errorf("unexpected survivors: %d, %d", messages[0].ID, messages[1].ID)
		}
	})

	t.Run("sorts ascending by ID regardless of arrival order", func(t *testing.T) {
		var requestCount atomic.Int64
		instance := &fakeInstance{
			request: func(_ context.Context, _, _ string, _ url.Values, _ any) ([]byte, error) {
				requestCount.Add(1)
				return userJSON("alice", "Alice"), nil
			},
		}
		store := NewGlobalUserStore(instance, testLogger())
		room := mustParseRoom(t, roomJSON(42, "general", "alice", false))

		enricher := NewMessageEnricher(store, room, testLogger())
		messages := enricher.EnrichAll(context.Background(), []BasicMessage{
			{ID: 30, SenderID: "alice", RoomID: 42},
			{ID: 10, SenderID: "alice", RoomID: 42},
			{ID: 20, SenderID: "alice", RoomID: 42},
		})
		if len(messages) != 3 {
			t.Fatalf("expected 3 messages, got %d", len(messages))
		}
		for i, want := range []int64{10, 20, 30} {
			if messages[i].ID != want {
				t.Errorf("position %d: expected ID %d, got %d", i, want, messages[i].ID)
			}
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		store := NewGlobalUserStore(&fakeInstance{}, testLogger())
		room := mustParseRoom(t, roomJSON(42, "general", "alice", false))
		enricher := NewMessageEnricher(store, room, testLogger())
		if messages := enricher.EnrichAll(context.Background(), nil); len(messages) != 0 {
			t.Errorf("expected empty result, got %v", messages)
		}
	})
}
