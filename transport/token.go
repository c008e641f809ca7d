// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "context"

// TokenProvider supplies the bearer token for outgoing requests and
// subscriptions. Implementations that refresh against an auth endpoint
// live with the application — the SDK only asks for the current token
// at the moment a request is made.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider that always returns the same token.
// Suitable for development and tests.
type StaticToken string

// Token returns the static token.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}
