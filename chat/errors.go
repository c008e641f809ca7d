// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"errors"
	"fmt"
)

// APIError represents a structured error response from the Palaver
// backend. Callers can use errors.As to extract the structured
// information:
//
//	var apiErr *chat.APIError
//	if errors.As(err, &apiErr) {
//	    if apiErr.Code == chat.ErrCodeNotFound { ... }
//	}
type APIError struct {
	// Code is the Palaver error code (e.g., "not_found", "forbidden").
	Code string `json:"error"`
	// Description is the human-readable error description from the server.
	Description string `json:"error_description"`
	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("palaver: %s (%d): %s", e.Code, e.StatusCode, e.Description)
}

// Standard Palaver error codes.
const (
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeRoomInUse    = "room_name_in_use"
	ErrCodeInvalidParam = "invalid_param"
)

// IsAPIError checks whether err is a *APIError with the given error code.
func IsAPIError(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// DeserializationError reports a server payload that does not match the
// wire contract: malformed JSON or a missing/mistyped required field.
// These are surfaced to callers (and to subscription delegates via
// their Error callback) rather than silently dropped, so a
// contract-breaking server version is diagnosable instead of producing
// half-populated records.
type DeserializationError struct {
	// Entity is the record kind being deserialized: "user", "room",
	// or "message".
	Entity string
	// Field is the missing or mistyped field. Empty when the payload
	// was not valid JSON at all.
	Field string
	// Cause is the underlying JSON error, when there is one.
	Cause error
}

func (e *DeserializationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("palaver: malformed %s payload: %v", e.Entity, e.Cause)
	}
	return fmt.Sprintf("palaver: %s payload missing or invalid field %q", e.Entity, e.Field)
}

func (e *DeserializationError) Unwrap() error {
	return e.Cause
}
