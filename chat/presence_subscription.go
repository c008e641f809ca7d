// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

type userStatePayload struct {
	UserID *string `json:"user_id"`
	State  *string `json:"state"`
}

type userStatesPayload struct {
	UserStates []userStatePayload `json:"user_states"`
}

// PresenceSubscription processes the presence event stream: a bulk
// initial_state snapshot followed by incremental updates. It mutates
// the presence field of users already known to the session; presence
// for a user the session has never seen creates no entry and fires no
// callback — the stream must keep flowing past stale references.
type PresenceSubscription struct {
	userStore *GlobalUserStore
	delegate  *Delegate
	logger    *slog.Logger

	ended atomic.Bool

	mu     sync.Mutex
	handle SubscriptionHandle
}

func newPresenceSubscription(userStore *GlobalUserStore, delegate *Delegate, logger *slog.Logger) *PresenceSubscription {
	return &PresenceSubscription{
		userStore: userStore,
		delegate:  delegate,
		logger:    logger,
	}
}

// End closes the stream and stops further dispatch. Idempotent.
func (s *PresenceSubscription) End() {
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

func (s *PresenceSubscription) setHandle(handle SubscriptionHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = handle
}

func (s *PresenceSubscription) handleEvent(event SubscriptionEvent) {
	if s.ended.Load() {
		return
	}
	switch event.Name {
	case "initial_state", "join_room_presence_update":
		var payload userStatesPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			s.fail(&DeserializationError{Entity: "presence", Field: "user_states", Cause: err})
			return
		}
		for _, state := range payload.UserStates {
			s.applyUserState(state)
		}
	case "presence_update":
		var payload userStatePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			s.fail(&DeserializationError{Entity: "presence", Cause: err})
			return
		}
		s.applyUserState(payload)
	default:
		s.logger.Debug("ignoring unknown presence event", "event", event.Name)
	}
}

// applyUserState records one user's presence and notifies the delegate
// when the state actually changed.
func (s *PresenceSubscription) applyUserState(payload userStatePayload) {
	if payload.UserID == nil || *payload.UserID == "" || payload.State == nil {
		s.fail(&DeserializationError{Entity: "presence", Field: "user_id"})
		return
	}

	state := PresenceState(*payload.State)
	switch state {
	case PresenceOnline, PresenceOffline:
	default:
		s.logger.Debug("ignoring unrecognized presence state", "user_id", *payload.UserID, "state", *payload.State)
		return
	}

	user := s.userStore.GetCached(*payload.UserID)
	if user == nil {
		// Presence for a user the session has never seen. No entry is
		// created — the user store only learns users through profile
		// payloads.
		s.logger.Debug("presence update for unknown user", "user_id", *payload.UserID, "state", state)
		return
	}

	if !user.setPresence(state) {
		return
	}
	if s.delegate == nil {
		return
	}
	switch state {
	case PresenceOnline:
		if s.delegate.UserCameOnline != nil {
			s.delegate.UserCameOnline(user)
		}
	case PresenceOffline:
		if s.delegate.UserWentOffline != nil {
			s.delegate.UserWentOffline(user)
		}
	}
}

func (s *PresenceSubscription) fail(err error) {
	s.logger.Debug("presence event error", "error", err)
	if s.delegate != nil && s.delegate.Error != nil {
		s.delegate.Error(err)
	}
}
