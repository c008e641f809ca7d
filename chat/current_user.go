// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

// CreateRoomOptions holds parameters for creating a room.
type CreateRoomOptions struct {
	Name    string
	Private bool
	// AddUserIDs are users to add as members at creation, in addition
	// to the creator.
	AddUserIDs []string
}

// UpdateRoomOptions holds parameters for updating a room. Nil fields
// are left unchanged; with both nil the update is a local no-op.
type UpdateRoomOptions struct {
	Name    *string
	Private *bool
}

// FetchMessagesOptions controls pagination for message fetching.
type FetchMessagesOptions struct {
	// InitialID anchors the fetch at a message ID; zero means "from
	// the newest".
	InitialID int64
	// Limit caps the number of messages; zero uses the server default.
	Limit int
	// Direction is "older" or "newer" relative to InitialID. Empty
	// defaults to "older".
	Direction string
}

// DefaultMessageLimit is the message backlog requested when
// subscribing to a room without an explicit limit.
const DefaultMessageLimit = 20

// CurrentUser is the root of one authenticated session: it owns the
// authoritative room store (every room the user is in) and shares the
// session's global user store. All operations follow the same
// pattern: issue the REST call, deserialize, merge into the relevant
// store, return the merged entity. Failures are logged and returned;
// none are fatal to the session.
//
// Obtain one from Manager.Connect.
type CurrentUser struct {
	// User is the session owner's identity record, shared with the
	// global user store — profile updates merge into it in place.
	User *User

	instance  Instance
	userStore *GlobalUserStore
	roomStore *RoomStore
	logger    *slog.Logger

	// pathFriendlyID is the URL-escaped user ID for path segments.
	pathFriendlyID string
}

func newCurrentUser(user *User, instance Instance, userStore *GlobalUserStore, logger *slog.Logger) *CurrentUser {
	if logger == nil {
		logger = slog.Default()
	}
	return &CurrentUser{
		User:           user,
		instance:       instance,
		userStore:      userStore,
		roomStore:      NewRoomStore(),
		logger:         logger,
		pathFriendlyID: url.PathEscape(user.ID),
	}
}

// Rooms returns a snapshot of the rooms the session knows it is a
// member of.
func (u *CurrentUser) Rooms() []*Room {
	return u.roomStore.Rooms()
}

// Room returns the known room with the given ID, or nil.
func (u *CurrentUser) Room(id int64) *Room {
	return u.roomStore.Get(id)
}

// UserStore returns the session's global user store.
func (u *CurrentUser) UserStore() *GlobalUserStore {
	return u.userStore
}

// CreateRoom creates a room, stores it, and populates its member
// cache before returning it. The server adds the creator to the
// membership automatically.
func (u *CurrentUser) CreateRoom(ctx context.Context, options CreateRoomOptions) (*Room, error) {
	body := map[string]any{
		"name":          options.Name,
		"created_by_id": u.User.ID,
		"private":       options.Private,
	}
	if len(options.AddUserIDs) > 0 {
		body["user_ids"] = options.AddUserIDs
	}

	responseBody, err := u.instance.Request(ctx, http.MethodPost, "/rooms", nil, body)
	if err != nil {
		u.logger.Debug("error creating room", "room_name", options.Name, "error", err)
		return nil, fmt.Errorf("chat: creating room %q: %w", options.Name, err)
	}
	room, err := ParseRoom(responseBody)
	if err != nil {
		return nil, fmt.Errorf("chat: creating room %q: %w", options.Name, err)
	}

	merged := u.roomStore.AddOrMerge(room)
	u.populateRoomUsers(ctx, merged)
	return merged, nil
}

// UpdateRoom changes a room's name and/or privacy. With neither set
// this is a no-op that never touches the network.
func (u *CurrentUser) UpdateRoom(ctx context.Context, roomID int64, options UpdateRoomOptions) error {
	if options.Name == nil && options.Private == nil {
		return nil
	}

	body := map[string]any{}
	if options.Name != nil {
		body["name"] = *options.Name
	}
	if options.Private != nil {
		body["private"] = *options.Private
	}

	_, err := u.instance.Request(ctx, http.MethodPut, u.roomPath(roomID), nil, body)
	if err != nil {
		u.logger.Debug("error updating room", "room_id", roomID, "error", err)
		return fmt.Errorf("chat: updating room %d: %w", roomID, err)
	}
	return nil
}

// DeleteRoom deletes a room. Store eviction happens when the
// room_deleted event arrives on the session stream.
func (u *CurrentUser) DeleteRoom(ctx context.Context, roomID int64) error {
	_, err := u.instance.Request(ctx, http.MethodDelete, u.roomPath(roomID), nil, nil)
	if err != nil {
		u.logger.Debug("error deleting room", "room_id", roomID, "error", err)
		return fmt.Errorf("chat: deleting room %d: %w", roomID, err)
	}
	return nil
}

// AddUser adds a user to a room's membership.
func (u *CurrentUser) AddUser(ctx context.Context, userID string, roomID int64) error {
	return u.changeMembership(ctx, roomID, []string{userID}, "add")
}

// RemoveUser removes a user from a room's membership.
func (u *CurrentUser) RemoveUser(ctx context.Context, userID string, roomID int64) error {
	return u.changeMembership(ctx, roomID, []string{userID}, "remove")
}

func (u *CurrentUser) changeMembership(ctx context.Context, roomID int64, userIDs []string, change string) error {
	body := map[string]any{"user_ids": userIDs}
	path := u.roomPath(roomID) + "/users/" + change
	_, err := u.instance.Request(ctx, http.MethodPut, path, nil, body)
	if err != nil {
		u.logger.Debug("error changing room membership",
			"room_id", roomID, "change", change, "user_ids", userIDs, "error", err)
		return fmt.Errorf("chat: %s users in room %d: %w", change, roomID, err)
	}
	return nil
}

// JoinRoom joins a room, stores it, and populates its member cache
// before returning it.
func (u *CurrentUser) JoinRoom(ctx context.Context, roomID int64) (*Room, error) {
	path := fmt.Sprintf("/users/%s/rooms/%d/join", u.pathFriendlyID, roomID)
	responseBody, err := u.instance.Request(ctx, http.MethodPost, path, nil, nil)
	if err != nil {
		u.logger.Debug("error joining room", "room_id", roomID, "error", err)
		return nil, fmt.Errorf("chat: joining room %d: %w", roomID, err)
	}
	room, err := ParseRoom(responseBody)
	if err != nil {
		return nil, fmt.Errorf("chat: joining room %d: %w", roomID, err)
	}

	merged := u.roomStore.AddOrMerge(room)
	u.populateRoomUsers(ctx, merged)
	return merged, nil
}

// LeaveRoom leaves a room. Store eviction happens when the
// removed_from_room event arrives on the session stream.
func (u *CurrentUser) LeaveRoom(ctx context.Context, roomID int64) error {
	path := fmt.Sprintf("/users/%s/rooms/%d/leave", u.pathFriendlyID, roomID)
	_, err := u.instance.Request(ctx, http.MethodPost, path, nil, nil)
	if err != nil {
		u.logger.Debug("error leaving room", "room_id", roomID, "error", err)
		return fmt.Errorf("chat: leaving room %d: %w", roomID, err)
	}
	return nil
}

// GetJoinedRooms fetches the rooms the user is a member of.
func (u *CurrentUser) GetJoinedRooms(ctx context.Context) ([]*Room, error) {
	return u.getUserRooms(ctx, false)
}

// GetJoinableRooms fetches the public rooms the user could join.
func (u *CurrentUser) GetJoinableRooms(ctx context.Context) ([]*Room, error) {
	return u.getUserRooms(ctx, true)
}

func (u *CurrentUser) getUserRooms(ctx context.Context, onlyJoinable bool) ([]*Room, error) {
	query := url.Values{}
	query.Set("joinable", strconv.FormatBool(onlyJoinable))
	return u.getRooms(ctx, "/users/"+u.pathFriendlyID+"/rooms", query)
}

// GetAllRooms fetches every room on the instance visible to the user.
func (u *CurrentUser) GetAllRooms(ctx context.Context) ([]*Room, error) {
	return u.getRooms(ctx, "/rooms", nil)
}

func (u *CurrentUser) getRooms(ctx context.Context, path string, query url.Values) ([]*Room, error) {
	responseBody, err := u.instance.Request(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		u.logger.Debug("error listing rooms", "path", path, "error", err)
		return nil, fmt.Errorf("chat: listing rooms: %w", err)
	}
	rooms, err := ParseRooms(responseBody)
	if err != nil {
		return nil, fmt.Errorf("chat: listing rooms: %w", err)
	}
	return rooms, nil
}

// StartedTypingIn signals that the current user started typing in a
// room.
func (u *CurrentUser) StartedTypingIn(ctx context.Context, roomID int64) error {
	return u.typingStateChange(ctx, roomID, "typing_start")
}

// StoppedTypingIn signals that the current user stopped typing in a
// room.
func (u *CurrentUser) StoppedTypingIn(ctx context.Context, roomID int64) error {
	return u.typingStateChange(ctx, roomID, "typing_stop")
}

func (u *CurrentUser) typingStateChange(ctx context.Context, roomID int64, eventName string) error {
	body := map[string]any{
		"name":    eventName,
		"user_id": u.User.ID,
	}
	_, err := u.instance.Request(ctx, http.MethodPost, u.roomPath(roomID)+"/events", nil, body)
	if err != nil {
		u.logger.Debug("error sending typing event", "room_id", roomID, "event", eventName, "error", err)
		return fmt.Errorf("chat: sending %s in room %d: %w", eventName, roomID, err)
	}
	return nil
}

// SendMessage posts a message to a room and returns the
// server-assigned message ID. The full message record arrives on the
// room's event stream.
func (u *CurrentUser) SendMessage(ctx context.Context, roomID int64, text string) (int64, error) {
	body := map[string]any{
		"text":    text,
		"user_id": u.User.ID,
	}
	responseBody, err := u.instance.Request(ctx, http.MethodPost, u.roomPath(roomID)+"/messages", nil, body)
	if err != nil {
		u.logger.Debug("error sending message", "room_id", roomID, "error", err)
		return 0, fmt.Errorf("chat: sending message to room %d: %w", roomID, err)
	}

	var response struct {
		MessageID *int64 `json:"message_id"`
	}
	if err := json.Unmarshal(responseBody, &response); err != nil || response.MessageID == nil {
		return 0, &DeserializationError{Entity: "message", Field: "message_id", Cause: err}
	}
	return *response.MessageID, nil
}

// FetchMessages fetches a page of a room's message history and
// enriches each message with its sender. Sender records are fetched
// in one settle-all batch; messages whose sender cannot be resolved
// are dropped (logged), not fatal to the page. The result is sorted
// ascending by message ID regardless of the order the server returned.
func (u *CurrentUser) FetchMessages(ctx context.Context, room *Room, options FetchMessagesOptions) ([]Message, error) {
	query := url.Values{}
	if options.InitialID > 0 {
		query.Set("initial_id", strconv.FormatInt(options.InitialID, 10))
	}
	if options.Limit > 0 {
		query.Set("limit", strconv.Itoa(options.Limit))
	}
	direction := options.Direction
	if direction == "" {
		direction = "older"
	}
	query.Set("direction", direction)

	responseBody, err := u.instance.Request(ctx, http.MethodGet, u.roomPath(room.ID)+"/messages", query, nil)
	if err != nil {
		u.logger.Debug("error fetching messages", "room_id", room.ID, "error", err)
		return nil, fmt.Errorf("chat: fetching messages from room %d: %w", room.ID, err)
	}

	var payloads []json.RawMessage
	if err := json.Unmarshal(responseBody, &payloads); err != nil {
		return nil, &DeserializationError{Entity: "message", Cause: err}
	}

	basics := make([]BasicMessage, 0, len(payloads))
	senderIDs := make([]string, 0, len(payloads))
	for _, payload := range payloads {
		basic, parseErr := ParseBasicMessage(payload)
		if parseErr != nil {
			return nil, fmt.Errorf("chat: fetching messages from room %d: %w", room.ID, parseErr)
		}
		basics = append(basics, basic)
		senderIDs = append(senderIDs, basic.SenderID)
	}

	// Warm the user store with every sender in one settle-all batch so
	// that per-message enrichment is a cache hit. Unresolvable senders
	// surface as per-message enrichment drops.
	u.userStore.FetchMany(ctx, senderIDs)

	enricher := NewMessageEnricher(u.userStore, room, u.logger)
	messages := enricher.EnrichAll(ctx, basics)
	u.notifyUsersUpdated(room)
	return messages, nil
}

// SubscribeToRoom opens the room's realtime event stream and attaches
// delegate to it. messageLimit caps the backlog of recent messages
// replayed on subscribe; zero uses DefaultMessageLimit. The returned
// subscription is also reachable via room.Subscription until ended.
func (u *CurrentUser) SubscribeToRoom(ctx context.Context, room *Room, delegate *RoomDelegate, messageLimit int) (*RoomSubscription, error) {
	if messageLimit <= 0 {
		messageLimit = DefaultMessageLimit
	}

	subscription := newRoomSubscription(ctx, room, delegate, u.userStore, u.roomStore, u.logger)
	query := url.Values{}
	query.Set("message_limit", strconv.Itoa(messageLimit))

	handle, err := u.instance.Subscribe(ctx, u.roomPath(room.ID), query, subscription.handleEvent)
	if err != nil {
		u.logger.Debug("error subscribing to room", "room_id", room.ID, "error", err)
		return nil, fmt.Errorf("chat: subscribing to room %d: %w", room.ID, err)
	}
	subscription.setHandle(handle)
	room.setSubscription(subscription)
	return subscription, nil
}

// populateRoomUsers resolves a room's membership into its member
// cache: one settle-all batch fetch, failures dropped and logged. The
// room's subscription delegate (when present) is told the member set
// settled.
func (u *CurrentUser) populateRoomUsers(ctx context.Context, room *Room) {
	users := u.userStore.FetchMany(ctx, room.UserIDs())
	for _, user := range users {
		room.Users.AddOrMerge(user)
	}
	u.logger.Debug("room users populated", "room_id", room.ID, "resolved", len(users))
	u.notifyUsersUpdated(room)
}

func (u *CurrentUser) notifyUsersUpdated(room *Room) {
	subscription := room.Subscription()
	if subscription == nil {
		return
	}
	if subscription.delegate != nil && subscription.delegate.UsersUpdated != nil {
		subscription.delegate.UsersUpdated()
	}
}

func (u *CurrentUser) roomPath(roomID int64) string {
	return "/rooms/" + strconv.FormatInt(roomID, 10)
}
