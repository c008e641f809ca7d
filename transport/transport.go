// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/palaver-chat/palaver/chat"
	"github.com/palaver-chat/palaver/lib/netutil"
)

// Config holds configuration for creating an Instance.
type Config struct {
	// BaseURL is the base URL of the Palaver service instance
	// (e.g., "https://api.palaver.dev/v1/instances/4fa3c1").
	BaseURL string
	// TokenProvider supplies the bearer token attached to every
	// request. If nil, requests are sent unauthenticated.
	TokenProvider TokenProvider
	// HTTPClient is used for all requests, including event streams.
	// If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Instance is the default chat.Instance implementation: REST calls
// plus server-sent-event subscriptions against one Palaver service
// instance. It is safe for concurrent use and holds no per-session
// state beyond the HTTP connection pool.
type Instance struct {
	baseURL       string
	tokenProvider TokenProvider
	httpClient    *http.Client
	logger        *slog.Logger
}

// Compile-time check: *Instance implements chat.Instance.
var _ chat.Instance = (*Instance)(nil)

// New creates an Instance.
func New(config Config) (*Instance, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("transport: BaseURL is required")
	}

	// Validate the URL structure. We store the string form (with
	// trailing slash stripped) and build request URLs by direct
	// concatenation: this avoids double-encoding issues with Go's
	// url.URL.String() on paths containing escaped segments (such as
	// user IDs with slashes).
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("transport: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Instance{
		baseURL:       strings.TrimRight(config.BaseURL, "/"),
		tokenProvider: config.TokenProvider,
		httpClient:    httpClient,
		logger:        logger,
	}, nil
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's connection pool. Call this after a network disruption to
// force subsequent requests to establish fresh TCP connections instead
// of reusing a poisoned pooled connection.
func (i *Instance) CloseIdleConnections() {
	i.httpClient.CloseIdleConnections()
}

// Request performs a REST call and returns the response body.
// On 2xx, returns the body. On 4xx/5xx with a structured error body,
// returns a *chat.APIError.
func (i *Instance) Request(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	requestURL := i.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("transport: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("transport: creating request: %w", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	requestID := uuid.NewString()
	request.Header.Set("X-Request-ID", requestID)

	if err := i.authorize(ctx, request); err != nil {
		return nil, err
	}

	response, err := i.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("transport: %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: reading response body for %s %s: %w", method, path, err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	i.logger.Debug("request failed",
		"method", method,
		"path", path,
		"status", response.StatusCode,
		"request_id", requestID,
	)

	// All Palaver error responses use the same JSON shape.
	var apiErr chat.APIError
	if jsonErr := json.Unmarshal(responseBody, &apiErr); jsonErr != nil || apiErr.Code == "" {
		// Server returned an unstructured error. This should not
		// happen with a healthy instance, but fail loud with the raw
		// body.
		return nil, fmt.Errorf("transport: unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	apiErr.StatusCode = response.StatusCode

	return nil, &apiErr
}

// authorize attaches the bearer token to an outgoing request.
func (i *Instance) authorize(ctx context.Context, request *http.Request) error {
	if i.tokenProvider == nil {
		return nil
	}
	token, err := i.tokenProvider.Token(ctx)
	if err != nil {
		return fmt.Errorf("transport: fetching auth token: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+token)
	return nil
}
