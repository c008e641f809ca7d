// Copyright 2026 The Palaver Authors
// SPDX-License-Identifier: Apache-2.0

// palaver-tail connects to a Palaver instance and prints a room's
// messages as they arrive. It is a diagnostic tool for watching a
// room's event stream and a minimal end-to-end exercise of the client
// SDK: connect, list rooms, subscribe, enrich, print.
package main
