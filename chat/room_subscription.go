// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// RoomSubscription processes one room's realtime event stream:
// messages (enriched with their sender before dispatch), membership
// changes, typing indicators, and room lifecycle events. Events are
// applied in delivery order; a failed event is logged and surfaced to
// the delegate's Error callback without stopping the stream.
//
// Create one with CurrentUser.SubscribeToRoom. End makes it terminal.
type RoomSubscription struct {
	room      *Room
	delegate  *RoomDelegate
	enricher  *MessageEnricher
	userStore *GlobalUserStore
	roomStore *RoomStore
	logger    *slog.Logger

	// ctx bounds sender fetches performed while enriching incoming
	// messages. It is the context the room was subscribed under.
	ctx context.Context

	ended atomic.Bool

	mu     sync.Mutex
	handle SubscriptionHandle
}

func newRoomSubscription(ctx context.Context, room *Room, delegate *RoomDelegate, userStore *GlobalUserStore, roomStore *RoomStore, logger *slog.Logger) *RoomSubscription {
	return &RoomSubscription{
		room:      room,
		delegate:  delegate,
		enricher:  NewMessageEnricher(userStore, room, logger),
		userStore: userStore,
		roomStore: roomStore,
		logger:    logger,
		ctx:       ctx,
	}
}

// Room returns the subscribed room.
func (s *RoomSubscription) Room() *Room {
	return s.room
}

// End closes the stream and stops further dispatch. Idempotent.
// In-flight store mutations complete; there is no rollback.
func (s *RoomSubscription) End() {
	if s.ended.Swap(true) {
		return
	}
	s.mu.Lock()
	handle := s.handle
	s.mu.Unlock()
	if handle != nil {
		_ = handle.Close()
	}
	s.room.setSubscription(nil)
}

func (s *RoomSubscription) setHandle(handle SubscriptionHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = handle
}

func (s *RoomSubscription) handleEvent(event SubscriptionEvent) {
	if s.ended.Load() {
		return
	}
	switch event.Name {
	case "new_message":
		s.handleNewMessage(event.Data)
	case "user_joined":
		s.handleUserJoined(event.Data)
	case "user_left":
		s.handleUserLeft(event.Data)
	case "typing_start":
		s.handleTyping(event.Data, true)
	case "typing_stop":
		s.handleTyping(event.Data, false)
	case "room_updated":
		s.handleRoomUpdated(event.Data)
	case "room_deleted":
		s.handleRoomDeleted(event.Data)
	default:
		s.logger.Debug("ignoring unknown room event", "room_id", s.room.ID, "event", event.Name)
	}
}

func (s *RoomSubscription) handleNewMessage(data json.RawMessage) {
	basic, err := ParseBasicMessage(data)
	if err != nil {
		s.fail(fmt.Errorf("chat: new_message in room %d: %w", s.room.ID, err))
		return
	}
	message, err := s.enricher.Enrich(s.ctx, basic)
	if err != nil {
		s.fail(err)
		return
	}
	if s.delegate != nil && s.delegate.NewMessage != nil {
		s.delegate.NewMessage(message)
	}
}

func (s *RoomSubscription) handleUserJoined(data json.RawMessage) {
	userID, ok := s.parseUserID(data, "user_joined")
	if !ok {
		return
	}
	user, err := s.userStore.Fetch(s.ctx, userID)
	if err != nil {
		// The join is real but the member record is unavailable.
		// Keep the stream flowing; the membership set stays accurate.
		s.logger.Debug("user_joined without resolvable user", "room_id", s.room.ID, "user_id", userID, "error", err)
		s.room.addUserID(userID)
		return
	}
	s.room.addUserID(userID)
	s.room.Users.AddOrMerge(user)
	if s.delegate != nil && s.delegate.UserJoined != nil {
		s.delegate.UserJoined(user)
	}
}

func (s *RoomSubscription) handleUserLeft(data json.RawMessage) {
	userID, ok := s.parseUserID(data, "user_left")
	if !ok {
		return
	}
	user := s.userStore.GetCached(userID)
	s.room.removeUserID(userID)
	s.room.Users.Remove(userID)
	if user == nil {
		s.logger.Debug("user_left for unknown user", "room_id", s.room.ID, "user_id", userID)
		return
	}
	if s.delegate != nil && s.delegate.UserLeft != nil {
		s.delegate.UserLeft(user)
	}
}

func (s *RoomSubscription) handleTyping(data json.RawMessage, started bool) {
	eventName := "typing_stop"
	if started {
		eventName = "typing_start"
	}
	userID, ok := s.parseUserID(data, eventName)
	if !ok {
		return
	}
	// Typing events carry no persistent state change — resolution is
	// only for the delegate's benefit.
	user, err := s.userStore.Fetch(s.ctx, userID)
	if err != nil {
		s.logger.Debug("typing event for unresolvable user", "room_id", s.room.ID, "user_id", userID, "error", err)
		return
	}
	if s.delegate == nil {
		return
	}
	if started && s.delegate.UserStartedTyping != nil {
		s.delegate.UserStartedTyping(user)
	}
	if !started && s.delegate.UserStoppedTyping != nil {
		s.delegate.UserStoppedTyping(user)
	}
}

func (s *RoomSubscription) handleRoomUpdated(data json.RawMessage) {
	room, err := ParseRoom(data)
	if err != nil {
		s.fail(fmt.Errorf("chat: room_updated in room %d: %w", s.room.ID, err))
		return
	}
	merged := s.roomStore.AddOrMerge(room)
	if s.delegate != nil && s.delegate.RoomUpdated != nil {
		s.delegate.RoomUpdated(merged)
	}
}

func (s *RoomSubscription) handleRoomDeleted(data json.RawMessage) {
	var payload roomIDPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomID == nil {
		s.fail(&DeserializationError{Entity: "room", Field: "room_id", Cause: err})
		return
	}
	s.roomStore.Remove(*payload.RoomID)
	if s.delegate != nil && s.delegate.RoomDeleted != nil {
		s.delegate.RoomDeleted(s.room)
	}
}

func (s *RoomSubscription) parseUserID(data json.RawMessage, eventName string) (string, bool) {
	var payload userIDPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.UserID == nil || *payload.UserID == "" {
		s.fail(&DeserializationError{Entity: eventName, Field: "user_id", Cause: err})
		return "", false
	}
	return *payload.UserID, true
}

// fail reports an event-processing error without ending the
// subscription.
func (s *RoomSubscription) fail(err error) {
	s.logger.Debug("room event error", "room_id", s.room.ID, "error", err)
	if s.delegate != nil && s.delegate.Error != nil {
		s.delegate.Error(err)
	}
}
