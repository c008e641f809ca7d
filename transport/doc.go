// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport is the default network layer for the Palaver
// client SDK: the canonical implementation of the chat.Instance
// collaborator.
//
// [Instance] performs REST calls over net/http and opens realtime
// subscriptions as server-sent-event streams. Request URLs are built
// by string concatenation rather than url.URL to avoid double-encoding
// of path segments that contain URL-escaped characters. Structured
// backend errors are returned as *chat.APIError with the server's
// error code and the HTTP status; unstructured error bodies fail loud
// with the raw body in the error message.
//
// Authentication is delegated to a [TokenProvider], asked for the
// current bearer token at the moment each request or subscription is
// made. [StaticToken] covers development and tests; refreshing
// providers belong to the application.
//
// Subscriptions deliver events to the caller's handler from a single
// goroutine per stream, preserving server delivery order. The package
// deliberately implements no reconnection, backoff, or resumption —
// a terminated stream is reported and left terminated.
package transport
