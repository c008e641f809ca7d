// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// ManagerConfig holds configuration for creating a Manager.
type ManagerConfig struct {
	// Instance is the transport for one Palaver service instance.
	// Required.
	Instance Instance
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Manager is the entry point for one authenticated chat session. It
// owns the session's global user store and the session-level
// subscriptions. Create one with NewManager, then call Connect.
type Manager struct {
	instance  Instance
	logger    *slog.Logger
	userStore *GlobalUserStore

	mu          sync.Mutex
	userSub     *userSubscription
	presenceSub *PresenceSubscription
	currentUser *CurrentUser
}

// NewManager creates a Manager for the given transport instance.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Instance == nil {
		return nil, fmt.Errorf("chat: Instance is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		instance:  config.Instance,
		logger:    logger,
		userStore: NewGlobalUserStore(config.Instance, logger),
	}, nil
}

// Connect opens the session: it subscribes to the session event
// stream, waits (bounded by ctx) for the initial_state snapshot that
// carries the current user's profile and room list, and wires the
// presence subscription. The returned CurrentUser is the handle for
// all subsequent operations.
//
// delegate may be nil; a nil delegate still keeps the local stores
// reconciled, it just receives no notifications.
func (m *Manager) Connect(ctx context.Context, delegate *Delegate) (*CurrentUser, error) {
	userSub := newUserSubscription(m.instance, m.userStore, delegate, m.logger)

	handle, err := m.instance.Subscribe(ctx, "/users", nil, userSub.handleEvent)
	if err != nil {
		return nil, fmt.Errorf("chat: subscribing to session events: %w", err)
	}
	userSub.setHandle(handle)

	var result connectResult
	select {
	case result = <-userSub.connected:
	case <-ctx.Done():
		userSub.end()
		return nil, fmt.Errorf("chat: waiting for initial session state: %w", ctx.Err())
	}
	if result.err != nil {
		userSub.end()
		return nil, result.err
	}
	currentUser := result.currentUser

	presenceSub := newPresenceSubscription(m.userStore, delegate, m.logger)
	presenceHandle, err := m.instance.Subscribe(ctx,
		"/users/"+currentUser.pathFriendlyID+"/presence", nil, presenceSub.handleEvent)
	if err != nil {
		userSub.end()
		return nil, fmt.Errorf("chat: subscribing to presence events: %w", err)
	}
	presenceSub.setHandle(presenceHandle)

	m.mu.Lock()
	m.userSub = userSub
	m.presenceSub = presenceSub
	m.currentUser = currentUser
	m.mu.Unlock()

	m.logger.Info("chat session connected",
		"user_id", currentUser.User.ID,
		"rooms", len(currentUser.Rooms()),
	)
	return currentUser, nil
}

// CurrentUser returns the connected session's current user, or nil
// before Connect succeeds.
func (m *Manager) CurrentUser() *CurrentUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentUser
}

// Close ends the session-level subscriptions and every active room
// subscription. Terminal: a closed Manager is not reusable. Idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	userSub := m.userSub
	presenceSub := m.presenceSub
	currentUser := m.currentUser
	m.mu.Unlock()

	if userSub != nil {
		userSub.end()
	}
	if presenceSub != nil {
		presenceSub.End()
	}
	if currentUser != nil {
		for _, room := range currentUser.Rooms() {
			if subscription := room.Subscription(); subscription != nil {
				subscription.End()
			}
		}
	}
	return nil
}
