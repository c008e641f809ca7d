// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Palaver packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. They are
// the standard way to assert on delegate callbacks in subscription
// tests: the delegate forwards each callback onto a channel and the
// test receives from it with a bounded wait.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Palaver-internal dependencies.
package testutil
