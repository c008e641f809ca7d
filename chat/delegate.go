// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

// Delegate is the caller-supplied set of session-level notification
// callbacks. Every field is optional; nil callbacks are skipped.
// Callbacks for one event stream are invoked sequentially in delivery
// order, from the stream's dispatch goroutine — long-running work
// should be handed off.
type Delegate struct {
	// AddedToRoom fires when the current user is added to a room.
	AddedToRoom func(room *Room)
	// RemovedFromRoom fires when the current user is removed from a
	// room. The room has already been evicted from the room store.
	RemovedFromRoom func(room *Room)
	// RoomUpdated fires after a room's fields were merged in place.
	RoomUpdated func(room *Room)
	// RoomDeleted fires when a room is deleted server-side. The room
	// has already been evicted from the room store.
	RoomDeleted func(room *Room)
	// UserUpdated fires after a user's profile was merged in place.
	UserUpdated func(user *User)
	// UserCameOnline and UserWentOffline fire on presence transitions
	// for users known to the session.
	UserCameOnline  func(user *User)
	UserWentOffline func(user *User)
	// Error receives event-processing failures (malformed payloads,
	// failed lookups). The subscription stays active; the error is
	// informational.
	Error func(err error)
}

// RoomDelegate is the caller-supplied set of room-level notification
// callbacks for one subscribed room. Every field is optional; nil
// callbacks are skipped.
type RoomDelegate struct {
	// NewMessage fires for each message, enriched with its sender.
	NewMessage func(message Message)
	// UserJoined and UserLeft fire on membership changes.
	UserJoined func(user *User)
	UserLeft   func(user *User)
	// UserStartedTyping and UserStoppedTyping fire on typing
	// indicator events. The server emits these unthrottled; any
	// debounce is the delegate's concern.
	UserStartedTyping func(user *User)
	UserStoppedTyping func(user *User)
	// UsersUpdated fires after a batch of member records settled into
	// the room's user cache (post-join population, message fetches).
	UsersUpdated func()
	// RoomUpdated fires after the room's fields were merged in place.
	RoomUpdated func(room *Room)
	// RoomDeleted fires when the room is deleted server-side.
	RoomDeleted func(room *Room)
	// Error receives event-processing failures. The subscription
	// stays active; the error is informational.
	Error func(err error)
}
