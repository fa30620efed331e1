// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth holds the bearer credential used by the chat client.
//
// Token issuance (login, MFA) happens elsewhere; this package only stores the
// resulting token and reports when the backend rejects it.
//
// # Key Types
//
//   - TokenStore: get/set/clear contract for a credential
//   - MemoryStore: process-local store (tests, RIGCHAT_TOKEN)
//   - FileStore: token file written atomically at 0600, optionally watched
//   - Session: wraps a store and fans out session-expired notifications
//
// # Usage
//
//	store := auth.NewFileStore(path)
//	sess := auth.NewSession(store, logger)
//	unsubscribe := sess.OnExpired(func(reason string) {
//	    fmt.Println("signed out:", reason)
//	})
//	defer unsubscribe()
package auth
