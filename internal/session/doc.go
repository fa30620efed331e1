// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the client-side state of one chat session and the
// cancellation handle for its in-flight stream.
//
// # Key Types
//
//   - Store: selected chat, message list, streaming and agent-mode flags
//   - Snapshot: immutable copy of a Store for rendering
//   - Canceller: issues one cancellation Token per send and stops it on demand
//
// Store performs no locking. Every mutation must run on the owning event loop
// (see package chat); only Snapshot values cross goroutines.
//
// # Usage
//
//	store := session.NewStore(" [Stopped]")
//	store.SelectChat("c1")
//	if err := store.AppendOptimisticExchange("Hello"); err != nil {
//	    return err // streaming, no chat, or empty text
//	}
package session
