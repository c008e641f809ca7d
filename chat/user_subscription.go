// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Event payload fragments shared by the subscription handlers.

type initialStatePayload struct {
	CurrentUser json.RawMessage   `json:"current_user"`
	Rooms       []json.RawMessage `json:"rooms"`
}

type userIDPayload struct {
	UserID *string `json:"user_id"`
}

type roomIDPayload struct {
	RoomID *int64 `json:"room_id"`
}

// connectResult carries the outcome of the first initial_state event
// back to Manager.Connect.
type connectResult struct {
	currentUser *CurrentUser
	err         error
}

// userSubscription processes the session event stream (/users): the
// initial_state snapshot that completes Connect, followed by
// incremental room membership and profile events. It owns no state of
// its own beyond the stores and delegate it mutates; once ended it
// never dispatches again.
type userSubscription struct {
	instance  Instance
	userStore *GlobalUserStore
	delegate  *Delegate
	logger    *slog.Logger

	// connected receives exactly one value: the outcome of the first
	// initial_state event (or the protocol violation that replaced it).
	connected   chan connectResult
	connectOnce sync.Once

	ended atomic.Bool

	mu          sync.Mutex
	currentUser *CurrentUser
	handle      SubscriptionHandle
}

func newUserSubscription(instance Instance, userStore *GlobalUserStore, delegate *Delegate, logger *slog.Logger) *userSubscription {
	return &userSubscription{
		instance:  instance,
		userStore: userStore,
		delegate:  delegate,
		logger:    logger,
		connected: make(chan connectResult, 1),
	}
}

func (s *userSubscription) setHandle(handle SubscriptionHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = handle
}

// end makes the subscription terminal: no further dispatch, stream
// closed. In-flight store mutations complete; there is no rollback.
func (s *userSubscription) end() {
	if s.ended.Swap(true) {
		return
	}
	s.mu.Lock()
	handle := s.handle
	s.mu.Unlock()
	if handle != nil {
		_ = handle.Close()
	}
}

func (s *userSubscription) resolveConnect(result connectResult) {
	s.connectOnce.Do(func() {
		s.connected <- result
	})
}

// handleEvent dispatches one session event. Runs on the transport's
// dispatch goroutine; events for this stream are applied in delivery
// order.
func (s *userSubscription) handleEvent(event SubscriptionEvent) {
	if s.ended.Load() {
		return
	}

	s.mu.Lock()
	currentUser := s.currentUser
	s.mu.Unlock()

	if currentUser == nil && event.Name != "initial_state" {
		s.resolveConnect(connectResult{
			err: fmt.Errorf("chat: expected initial_state as first session event, got %q", event.Name),
		})
		return
	}

	switch event.Name {
	case "initial_state":
		s.handleInitialState(event.Data)
	case "added_to_room":
		s.handleAddedToRoom(event.Data)
	case "removed_from_room":
		s.handleRoomEvicted(event.Data, "removed_from_room")
	case "room_updated":
		s.handleRoomUpdated(event.Data)
	case "room_deleted":
		s.handleRoomEvicted(event.Data, "room_deleted")
	case "user_updated":
		s.handleUserUpdated(event.Data)
	default:
		// Unknown event names are ignored for forward compatibility.
		s.logger.Debug("ignoring unknown session event", "event", event.Name)
	}
}

func (s *userSubscription) handleInitialState(data json.RawMessage) {
	var payload initialStatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.fail(&DeserializationError{Entity: "initial_state", Cause: err})
		return
	}
	user, err := ParseUser(payload.CurrentUser)
	if err != nil {
		s.fail(fmt.Errorf("chat: initial_state current user: %w", err))
		return
	}

	s.mu.Lock()
	currentUser := s.currentUser
	s.mu.Unlock()

	if currentUser == nil {
		currentUser = newCurrentUser(s.userStore.Merge(user), s.instance, s.userStore, s.logger)
		s.mu.Lock()
		s.currentUser = currentUser
		s.mu.Unlock()
	} else {
		// A repeated snapshot re-merges into the live session state.
		s.userStore.Merge(user)
	}

	for _, roomData := range payload.Rooms {
		room, parseErr := ParseRoom(roomData)
		if parseErr != nil {
			s.fail(fmt.Errorf("chat: initial_state room: %w", parseErr))
			continue
		}
		currentUser.roomStore.AddOrMerge(room)
	}

	s.resolveConnect(connectResult{currentUser: currentUser})
}

func (s *userSubscription) handleAddedToRoom(data json.RawMessage) {
	room, err := ParseRoom(data)
	if err != nil {
		s.fail(fmt.Errorf("chat: added_to_room: %w", err))
		return
	}
	merged := s.roomStore().AddOrMerge(room)
	s.logger.Debug("added to room", "room_id", merged.ID, "room_name", merged.Name())
	if s.delegate != nil && s.delegate.AddedToRoom != nil {
		s.delegate.AddedToRoom(merged)
	}
}

func (s *userSubscription) handleRoomUpdated(data json.RawMessage) {
	room, err := ParseRoom(data)
	if err != nil {
		s.fail(fmt.Errorf("chat: room_updated: %w", err))
		return
	}
	store := s.roomStore()
	if store.Get(room.ID) == nil {
		// Stale event for a room this session does not hold. Keep the
		// stream flowing.
		s.logger.Debug("room_updated for unknown room", "room_id", room.ID)
		return
	}
	merged := store.AddOrMerge(room)
	if s.delegate != nil && s.delegate.RoomUpdated != nil {
		s.delegate.RoomUpdated(merged)
	}
}

func (s *userSubscription) handleRoomEvicted(data json.RawMessage, eventName string) {
	var payload roomIDPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomID == nil {
		s.fail(&DeserializationError{Entity: "room", Field: "room_id", Cause: err})
		return
	}
	store := s.roomStore()
	room := store.Get(*payload.RoomID)
	if room == nil {
		s.logger.Debug("eviction event for unknown room", "event", eventName, "room_id", *payload.RoomID)
		return
	}
	store.Remove(room.ID)
	if s.delegate == nil {
		return
	}
	switch eventName {
	case "removed_from_room":
		if s.delegate.RemovedFromRoom != nil {
			s.delegate.RemovedFromRoom(room)
		}
	case "room_deleted":
		if s.delegate.RoomDeleted != nil {
			s.delegate.RoomDeleted(room)
		}
	}
}

func (s *userSubscription) handleUserUpdated(data json.RawMessage) {
	user, err := ParseUser(data)
	if err != nil {
		s.fail(fmt.Errorf("chat: user_updated: %w", err))
		return
	}
	if s.userStore.GetCached(user.ID) == nil {
		s.logger.Debug("user_updated for unknown user", "user_id", user.ID)
		return
	}
	merged := s.userStore.Merge(user)
	if s.delegate != nil && s.delegate.UserUpdated != nil {
		s.delegate.UserUpdated(merged)
	}
}

func (s *userSubscription) roomStore() *RoomStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentUser.roomStore
}

// fail reports an event-processing error without ending the
// subscription: logged, surfaced to the delegate, and — if the session
// is still waiting on its first initial_state — surfaced to Connect.
func (s *userSubscription) fail(err error) {
	s.logger.Debug("session event error", "error", err)
	s.resolveConnect(connectResult{err: err})
	if s.delegate != nil && s.delegate.Error != nil {
		s.delegate.Error(err)
	}
}
