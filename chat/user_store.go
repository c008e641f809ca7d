// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"
)

// GlobalUserStore is the session-wide cache of user records, keyed by
// user ID. It guarantees at most one live *User per ID: merges mutate
// the existing instance rather than replacing it, so room member lists
// and enriched messages holding a *User observe later profile updates.
//
// Safe for concurrent use.
type GlobalUserStore struct {
	instance Instance
	logger   *slog.Logger

	mu    sync.Mutex
	users map[string]*User

	// fetches collapses concurrent backend fetches for the same user
	// ID into a single request. Without it, two simultaneous cache
	// misses would each hit the backend; merge-not-replace would still
	// converge them, but the duplicate request is wasted.
	fetches singleflight.Group
}

// NewGlobalUserStore creates an empty user store backed by the given
// transport instance. A nil logger defaults to slog.Default().
func NewGlobalUserStore(instance Instance, logger *slog.Logger) *GlobalUserStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &GlobalUserStore{
		instance: instance,
		logger:   logger,
		users:    make(map[string]*User),
	}
}

// GetCached returns the cached user for id, or nil. Never blocks on
// the network.
func (s *GlobalUserStore) GetCached(id string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

// Merge upserts a user record. If a user with the same ID exists, its
// fields are updated in place and the existing instance is returned;
// otherwise user itself is stored. Merging the same payload twice
// yields the same final state as merging it once.
func (s *GlobalUserStore) Merge(user *User) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[user.ID]; ok {
		if existing != user {
			existing.updateFrom(user)
		}
		return existing
	}
	s.users[user.ID] = user
	return user
}

// Fetch returns the user for id, from cache when possible, otherwise
// from the backend. Concurrent fetches for the same ID share one
// request and receive the same instance.
func (s *GlobalUserStore) Fetch(ctx context.Context, id string) (*User, error) {
	if user := s.GetCached(id); user != nil {
		return user, nil
	}

	result, err, _ := s.fetches.Do(id, func() (any, error) {
		// Re-check under singleflight: another caller may have
		// completed the fetch between our cache miss and here.
		if user := s.GetCached(id); user != nil {
			return user, nil
		}
		body, err := s.instance.Request(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, nil)
		if err != nil {
			return nil, fmt.Errorf("chat: fetching user %q: %w", id, err)
		}
		user, err := ParseUser(body)
		if err != nil {
			return nil, fmt.Errorf("chat: fetching user %q: %w", id, err)
		}
		return s.Merge(user), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*User), nil
}

// FetchMany resolves a set of user IDs, fetching uncached ones from
// the backend in parallel. It waits for every fetch to settle before
// returning. IDs whose fetch failed are absent from the result; each
// failure is logged, never propagated — a partially resolvable batch
// is not a batch failure.
func (s *GlobalUserStore) FetchMany(ctx context.Context, ids []string) map[string]*User {
	users := make(map[string]*User, len(ids))

	var missing []string
	for _, id := range ids {
		if _, seen := users[id]; seen {
			continue
		}
		if user := s.GetCached(id); user != nil {
			users[id] = user
			continue
		}
		if !slices.Contains(missing, id) {
			missing = append(missing, id)
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, id := range missing {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user, err := s.Fetch(ctx, id)
			if err != nil {
				s.logger.Debug("dropping user from batch fetch", "user_id", id, "error", err)
				return
			}
			mu.Lock()
			users[id] = user
			mu.Unlock()
		}()
	}
	wg.Wait()

	return users
}

// RoomUserStore caches the subset of users known to be members of one
// room. It holds references into the global store — the global store
// owns identity, so adding an already-present user is a no-op that
// returns the stored instance.
//
// Safe for concurrent use.
type RoomUserStore struct {
	mu    sync.Mutex
	users map[string]*User
}

// NewRoomUserStore creates an empty per-room user cache.
func NewRoomUserStore() *RoomUserStore {
	return &RoomUserStore{users: make(map[string]*User)}
}

// AddOrMerge records user as a room member and returns the stored
// instance.
func (s *RoomUserStore) AddOrMerge(user *User) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[user.ID]; ok {
		return existing
	}
	s.users[user.ID] = user
	return user
}

// Get returns the cached member for id, or nil.
func (s *RoomUserStore) Get(id string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

// Remove evicts a member from the cache.
func (s *RoomUserStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// Users returns a snapshot of the cached members, in unspecified order.
func (s *RoomUserStore) Users() []*User {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]*User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	return users
}
