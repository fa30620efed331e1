// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for workspaces, chats and messages.
//
// These types mirror the JSON shapes returned by the chat backend. The client
// never owns chat titles or message ids: both are assigned server-side and only
// displayed here.
//
// # Key Types
//
//   - Workspace: Top-level container grouping chats for a user
//   - Chat: A titled conversation thread inside a workspace
//   - Message: Single message with role, content and optional server identity
//   - Role: Message role enumeration (user, assistant)
//   - Timestamp: Tolerant time wrapper for backend timestamps
//
// # Usage
//
// Build the optimistic pair appended when a user sends a message:
//
//	user := model.NewUserMessage("Hello!")
//	placeholder := model.NewPlaceholder()
package model
