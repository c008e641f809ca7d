// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"encoding/json"
	"net/url"
)

// Instance is the transport collaborator for one Palaver service
// instance. The chat package never opens sockets or manages auth
// tokens directly — both are delegated here. The canonical
// implementation is transport.Instance; tests substitute fakes.
type Instance interface {
	// Request performs a REST call against the service instance and
	// returns the raw response body. On a non-2xx response with a
	// structured error body, the returned error is a *APIError.
	// query and body may be nil.
	Request(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error)

	// Subscribe opens a realtime event stream at path and invokes
	// onEvent for every named event the server delivers, in delivery
	// order, from a single goroutine. Dispatch stops when the handle
	// is closed or the transport terminates the stream.
	Subscribe(ctx context.Context, path string, query url.Values, onEvent func(event SubscriptionEvent)) (SubscriptionHandle, error)
}

// SubscriptionEvent is one named event from a realtime stream.
type SubscriptionEvent struct {
	// Name is the server-assigned event name (e.g., "new_message",
	// "initial_state").
	Name string
	// Data is the raw event payload.
	Data json.RawMessage
}

// SubscriptionHandle controls the lifetime of one realtime stream.
type SubscriptionHandle interface {
	// Close tears down the stream. Idempotent. Events already being
	// dispatched may still complete; no further dispatch starts.
	Close() error
}
