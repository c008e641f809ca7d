// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"slices"
	"sync"
)

// PresenceState is a user's realtime presence as reported by the
// presence subscription.
type PresenceState string

// Presence states.
const (
	PresenceUnknown PresenceState = "unknown"
	PresenceOnline  PresenceState = "online"
	PresenceOffline PresenceState = "offline"
)

// User is a Palaver user record. Users are identified by ID and held
// as a single shared instance per ID within a store: merges update the
// existing instance's fields in place, so every holder of a *User
// observes profile and presence updates. Mutable fields are accessed
// through methods; the accessors are safe for concurrent use.
type User struct {
	// ID is the server-side user identifier. Immutable.
	ID string
	// CreatedAt is the server-formatted creation timestamp. Immutable.
	CreatedAt string

	mu         sync.Mutex
	updatedAt  string
	name       string
	avatarURL  string
	customData map[string]any
	presence   PresenceState
}

// Name returns the user's display name, which may be empty.
func (u *User) Name() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.name
}

// AvatarURL returns the user's avatar URL, which may be empty.
func (u *User) AvatarURL() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.avatarURL
}

// UpdatedAt returns the server-formatted timestamp of the last profile
// update.
func (u *User) UpdatedAt() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.updatedAt
}

// CustomData returns the free-form metadata attached to the user by
// the application, or nil.
func (u *User) CustomData() map[string]any {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.customData
}

// Presence returns the user's last known presence state.
// PresenceUnknown until a presence subscription reports otherwise.
func (u *User) Presence() PresenceState {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.presence == "" {
		return PresenceUnknown
	}
	return u.presence
}

// updateFrom copies other's mutable profile fields into u. Presence is
// not a profile field: a freshly deserialized record carries no
// presence and must not clobber state reported by the presence stream.
func (u *User) updateFrom(other *User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.updatedAt = other.updatedAt
	u.name = other.name
	u.avatarURL = other.avatarURL
	u.customData = other.customData
}

// setPresence records a new presence state and reports whether it
// differs from the previous one.
func (u *User) setPresence(state PresenceState) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.presence == state {
		return false
	}
	u.presence = state
	return true
}

// Room is a Palaver room record. Like User, rooms are single shared
// instances per ID: RoomStore.AddOrMerge updates the existing instance
// in place, so references held across membership and rename events
// stay current.
type Room struct {
	// ID is the server-assigned numeric room identifier. Immutable.
	ID int64
	// CreatedByUserID is the creating user. Immutable.
	CreatedByUserID string
	// CreatedAt is the server-formatted creation timestamp. Immutable.
	CreatedAt string

	// Users caches the subset of the global user store known to be
	// members of this room. Populated after room creation/join and as
	// message senders are resolved.
	Users *RoomUserStore

	mu           sync.Mutex
	name         string
	private      bool
	updatedAt    string
	userIDs      map[string]struct{}
	subscription *RoomSubscription
}

// Name returns the room's display name.
func (r *Room) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

// IsPrivate reports whether the room is private.
func (r *Room) IsPrivate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.private
}

// UpdatedAt returns the server-formatted timestamp of the last room
// update.
func (r *Room) UpdatedAt() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updatedAt
}

// UserIDs returns a sorted snapshot of the room's member user IDs.
func (r *Room) UserIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.userIDs))
	for id := range r.userIDs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// HasUser reports whether the given user ID is a member of the room.
func (r *Room) HasUser(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.userIDs[userID]
	return ok
}

// Subscription returns the room's active realtime subscription, or nil
// if the room is not subscribed.
func (r *Room) Subscription() *RoomSubscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subscription
}

func (r *Room) setSubscription(subscription *RoomSubscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscription = subscription
}

// updateFrom copies other's mutable fields into r.
func (r *Room) updateFrom(other *Room) {
	other.mu.Lock()
	name, private, updatedAt := other.name, other.private, other.updatedAt
	userIDs := make(map[string]struct{}, len(other.userIDs))
	for id := range other.userIDs {
		userIDs[id] = struct{}{}
	}
	other.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
	r.private = private
	r.updatedAt = updatedAt
	r.userIDs = userIDs
}

func (r *Room) addUserID(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userIDs[userID] = struct{}{}
}

func (r *Room) removeUserID(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.userIDs, userID)
}

// BasicMessage is a message as delivered on the wire: the sender is
// referenced by ID only.
type BasicMessage struct {
	ID        int64
	SenderID  string
	RoomID    int64
	Text      string
	CreatedAt string
	UpdatedAt string
}

// Message is a BasicMessage with its sender resolved to a full user
// record (see MessageEnricher). Message IDs are server-assigned and
// monotonic, so ascending ID order is chronological order.
type Message struct {
	BasicMessage
	Sender *User
}
