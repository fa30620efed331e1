// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport is the authenticated HTTP client for the chat backend.
//
// Every request carries the bearer credential, a JSON content type, a user
// agent and a fresh X-Request-ID. A 401 response expires the credential
// through the injected Credentials and is reported as *AuthError; it is never
// retried. Other failures are reported as *TransportError (JSON endpoints) or
// *StreamError (streaming endpoints).
//
// # Usage
//
//	client := transport.New(baseURL, session,
//	    transport.WithLogger(logger),
//	    transport.WithRateLimit(5, 2),
//	)
//	var chats []model.Chat
//	err := client.DoJSON(ctx, http.MethodGet, "/chats?workspace_id=w1", nil, &chats)
package transport
