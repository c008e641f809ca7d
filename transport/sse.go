// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/palaver-chat/palaver/chat"
	"github.com/palaver-chat/palaver/lib/netutil"
)

// maxEventSize bounds a single event-stream line. Message payloads are
// small; the limit only guards against a runaway stream.
const maxEventSize = 1 << 20

// Subscribe opens a server-sent-event stream at path and dispatches
// each named event to onEvent from a single goroutine, in delivery
// order. The stream lives until the returned handle is closed, ctx is
// cancelled, or the server terminates it. There is no automatic
// reconnection — resumption is the caller's concern.
func (i *Instance) Subscribe(ctx context.Context, path string, query url.Values, onEvent func(event chat.SubscriptionEvent)) (chat.SubscriptionHandle, error) {
	requestURL := i.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	streamCtx, cancel := context.WithCancel(ctx)

	request, err := http.NewRequestWithContext(streamCtx, http.MethodGet, requestURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("transport: creating subscribe request: %w", err)
	}
	request.Header.Set("Accept", "text/event-stream")
	request.Header.Set("Cache-Control", "no-cache")

	if err := i.authorize(streamCtx, request); err != nil {
		cancel()
		return nil, err
	}

	response, err := i.httpClient.Do(request)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("transport: subscribing to %s: %w", path, err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer response.Body.Close()
		defer cancel()
		responseBody, readErr := netutil.ReadResponse(response.Body)
		if readErr != nil {
			return nil, fmt.Errorf("transport: subscribing to %s: unexpected %d response", path, response.StatusCode)
		}
		var apiErr chat.APIError
		if jsonErr := json.Unmarshal(responseBody, &apiErr); jsonErr != nil || apiErr.Code == "" {
			return nil, fmt.Errorf("transport: subscribing to %s: unexpected %d response: %s",
				path, response.StatusCode, string(responseBody))
		}
		apiErr.StatusCode = response.StatusCode
		return nil, &apiErr
	}

	subscriptionID := uuid.NewString()
	i.logger.Debug("subscription opened", "path", path, "subscription_id", subscriptionID)

	subscription := &sseSubscription{cancel: cancel}
	go i.readStream(streamCtx, response, path, subscriptionID, onEvent)
	return subscription, nil
}

// readStream consumes one event stream until it ends, dispatching
// completed events in delivery order.
func (i *Instance) readStream(ctx context.Context, response *http.Response, path, subscriptionID string, onEvent func(event chat.SubscriptionEvent)) {
	defer response.Body.Close()

	scanner := bufio.NewScanner(response.Body)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)

	var eventName string
	var dataLines []string
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			// Blank line terminates one event.
			if eventName != "" || len(dataLines) > 0 {
				onEvent(chat.SubscriptionEvent{
					Name: eventName,
					Data: json.RawMessage(strings.Join(dataLines, "\n")),
				})
			}
			eventName = ""
			dataLines = nil
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
			// Comment line, used by servers as a keep-alive.
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// Unknown field (e.g., "id:", "retry:") — not consumed.
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil && !netutil.IsExpectedCloseError(err) {
		i.logger.Warn("subscription stream terminated",
			"path", path,
			"subscription_id", subscriptionID,
			"error", err,
		)
		return
	}
	i.logger.Debug("subscription closed", "path", path, "subscription_id", subscriptionID)
}

// sseSubscription is the handle for one open event stream.
type sseSubscription struct {
	cancel context.CancelFunc
	once   sync.Once
}

// Close tears down the stream. Idempotent. The dispatch goroutine
// exits once its in-flight read is interrupted.
func (s *sseSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}
