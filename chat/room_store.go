// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"slices"
	"sync"
)

// RoomStore is the cache of room records for one session, keyed by
// room ID. Like GlobalUserStore it guarantees one live *Room per ID:
// AddOrMerge updates the existing instance in place, so a *Room
// captured before a room_updated event observes the update.
//
// Safe for concurrent use.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[int64]*Room
	order []int64
}

// NewRoomStore creates an empty room store.
func NewRoomStore() *RoomStore {
	return &RoomStore{rooms: make(map[int64]*Room)}
}

// AddOrMerge upserts a room record. If a room with the same ID exists,
// its mutable fields (name, privacy, membership, updated timestamp)
// are updated in place and the existing instance is returned;
// otherwise room itself is stored.
func (s *RoomStore) AddOrMerge(room *Room) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rooms[room.ID]; ok {
		if existing != room {
			existing.updateFrom(room)
		}
		return existing
	}
	s.rooms[room.ID] = room
	s.order = append(s.order, room.ID)
	return room
}

// Get returns the cached room for id, or nil.
func (s *RoomStore) Get(id int64) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[id]
}

// Remove evicts a room. Used when the current user is removed from it
// or the room is deleted. Removing an absent ID is a no-op.
func (s *RoomStore) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return
	}
	delete(s.rooms, id)
	s.order = slices.DeleteFunc(s.order, func(storedID int64) bool {
		return storedID == id
	})
}

// Rooms returns a snapshot of all stored rooms in insertion order.
// Insertion order is a stable iteration order, not a semantic one.
func (s *RoomStore) Rooms() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]*Room, 0, len(s.order))
	for _, id := range s.order {
		rooms = append(rooms, s.rooms[id])
	}
	return rooms
}
