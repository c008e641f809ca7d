// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
)

// fakeInstance is a test double for the transport. Behavior is
// supplied per-test through the function fields; a nil field fails
// the call.
type fakeInstance struct {
	request   func(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error)
	subscribe func(ctx context.Context, path string, query url.Values, onEvent func(SubscriptionEvent)) (SubscriptionHandle, error)
}

func (f *fakeInstance) Request(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	if f.request == nil {
		return nil, fmt.Errorf("unexpected request: %s %s", method, path)
	}
	return f.request(ctx, method, path, query, body)
}

func (f *fakeInstance) Subscribe(ctx context.Context, path string, query url.Values, onEvent func(SubscriptionEvent)) (SubscriptionHandle, error) {
	if f.subscribe == nil {
		return nil, fmt.Errorf("unexpected subscribe: %s", path)
	}
	return f.subscribe(ctx, path, query, onEvent)
}

// fakeHandle records whether the stream was closed.
type fakeHandle struct {
	closed atomic.Bool
}

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// testUser builds a user record the way deserialization would.
func testUser(id, name string) *User {
	return &User{
		ID:        id,
		CreatedAt: "2026-08-01T10:00:00Z",
		updatedAt: "2026-08-01T10:00:00Z",
		name:      name,
	}
}

// userJSON is the wire shape of a user record.
func userJSON(id, name string) []byte {
	return fmt.Appendf(nil,
		`{"id":%q,"name":%q,"created_at":"2026-08-01T10:00:00Z","updated_at":"2026-08-01T10:00:00Z"}`,
		id, name)
}

// roomJSON is the wire shape of a room record.
func roomJSON(id int64, name, createdBy string, private bool, userIDs ...string) []byte {
	members := ""
	for i, userID := range userIDs {
		if i > 0 {
			members += ","
		}
		members += fmt.Sprintf("%q", userID)
	}
	return fmt.Appendf(nil,
		`{"id":%d,"name":%q,"created_by_id":%q,"private":%t,"user_ids":[%s],"created_at":"2026-08-01T10:00:00Z","updated_at":"2026-08-01T10:00:00Z"}`,
		id, name, createdBy, private, members)
}

// messageJSON is the wire shape of a message record.
func messageJSON(id int64, senderID string, roomID int64, text string) []byte {
	return fmt.Appendf(nil,
		`{"id":%d,"user_id":%q,"room_id":%d,"text":%q,"created_at":"2026-08-01T10:05:00Z","updated_at":"2026-08-01T10:05:00Z"}`,
		id, senderID, roomID, text)
}
