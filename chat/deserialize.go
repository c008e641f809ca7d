// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"encoding/json"
)

// Wire payload shapes. Required fields are pointers so that absence is
// distinguishable from the zero value and can be reported as a
// *DeserializationError instead of leaking a half-populated record.

type userPayload struct {
	ID         *string        `json:"id"`
	CreatedAt  *string        `json:"created_at"`
	UpdatedAt  *string        `json:"updated_at"`
	Name       string         `json:"name"`
	AvatarURL  string         `json:"avatar_url"`
	CustomData map[string]any `json:"custom_data"`
}

type roomPayload struct {
	ID              *int64   `json:"id"`
	Name            *string  `json:"name"`
	CreatedByUserID *string  `json:"created_by_id"`
	Private         bool     `json:"private"`
	UserIDs         []string `json:"user_ids"`
	CreatedAt       *string  `json:"created_at"`
	UpdatedAt       *string  `json:"updated_at"`
}

type messagePayload struct {
	ID        *int64  `json:"id"`
	SenderID  *string `json:"user_id"`
	RoomID    *int64  `json:"room_id"`
	Text      *string `json:"text"`
	CreatedAt *string `json:"created_at"`
	UpdatedAt *string `json:"updated_at"`
}

// ParseUser deserializes a user payload.
func ParseUser(data json.RawMessage) (*User, error) {
	var payload userPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &DeserializationError{Entity: "user", Cause: err}
	}
	switch {
	case payload.ID == nil || *payload.ID == "":
		return nil, &DeserializationError{Entity: "user", Field: "id"}
	case payload.CreatedAt == nil:
		return nil, &DeserializationError{Entity: "user", Field: "created_at"}
	case payload.UpdatedAt == nil:
		return nil, &DeserializationError{Entity: "user", Field: "updated_at"}
	}
	return &User{
		ID:         *payload.ID,
		CreatedAt:  *payload.CreatedAt,
		updatedAt:  *payload.UpdatedAt,
		name:       payload.Name,
		avatarURL:  payload.AvatarURL,
		customData: payload.CustomData,
	}, nil
}

// ParseRoom deserializes a room payload. A missing user_ids field is
// an empty membership set, not an error — membership-free shapes occur
// in room_updated events.
func ParseRoom(data json.RawMessage) (*Room, error) {
	var payload roomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &DeserializationError{Entity: "room", Cause: err}
	}
	switch {
	case payload.ID == nil:
		return nil, &DeserializationError{Entity: "room", Field: "id"}
	case payload.Name == nil:
		return nil, &DeserializationError{Entity: "room", Field: "name"}
	case payload.CreatedByUserID == nil || *payload.CreatedByUserID == "":
		return nil, &DeserializationError{Entity: "room", Field: "created_by_id"}
	case payload.CreatedAt == nil:
		return nil, &DeserializationError{Entity: "room", Field: "created_at"}
	case payload.UpdatedAt == nil:
		return nil, &DeserializationError{Entity: "room", Field: "updated_at"}
	}

	userIDs := make(map[string]struct{}, len(payload.UserIDs))
	for _, id := range payload.UserIDs {
		userIDs[id] = struct{}{}
	}
	return &Room{
		ID:              *payload.ID,
		CreatedByUserID: *payload.CreatedByUserID,
		CreatedAt:       *payload.CreatedAt,
		Users:           NewRoomUserStore(),
		name:            *payload.Name,
		private:         payload.Private,
		updatedAt:       *payload.UpdatedAt,
		userIDs:         userIDs,
	}, nil
}

// ParseBasicMessage deserializes a message payload into a
// BasicMessage. Sender resolution is a separate enrichment step.
func ParseBasicMessage(data json.RawMessage) (BasicMessage, error) {
	var payload messagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return BasicMessage{}, &DeserializationError{Entity: "message", Cause: err}
	}
	switch {
	case payload.ID == nil:
		return BasicMessage{}, &DeserializationError{Entity: "message", Field: "id"}
	case payload.SenderID == nil || *payload.SenderID == "":
		return BasicMessage{}, &DeserializationError{Entity: "message", Field: "user_id"}
	case payload.RoomID == nil:
		return BasicMessage{}, &DeserializationError{Entity: "message", Field: "room_id"}
	case payload.Text == nil:
		return BasicMessage{}, &DeserializationError{Entity: "message", Field: "text"}
	case payload.CreatedAt == nil:
		return BasicMessage{}, &DeserializationError{Entity: "message", Field: "created_at"}
	case payload.UpdatedAt == nil:
		return BasicMessage{}, &DeserializationError{Entity: "message", Field: "updated_at"}
	}
	return BasicMessage{
		ID:        *payload.ID,
		SenderID:  *payload.SenderID,
		RoomID:    *payload.RoomID,
		Text:      *payload.Text,
		CreatedAt: *payload.CreatedAt,
		UpdatedAt: *payload.UpdatedAt,
	}, nil
}

// ParseRooms deserializes a JSON array of room payloads.
func ParseRooms(data json.RawMessage) ([]*Room, error) {
	var payloads []json.RawMessage
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, &DeserializationError{Entity: "room", Cause: err}
	}
	rooms := make([]*Room, 0, len(payloads))
	for _, payload := range payloads {
		room, err := ParseRoom(payload)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}
