// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// UntitledChat is shown for chats whose title is empty or null.
const UntitledChat = "Untitled Chat"

// Workspace is the top-level container grouping chats for a user.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
}

// Chat is a titled conversation thread. It belongs to exactly one workspace.
//
// Title is mutated server-side (auto-rename after the first exchange); the
// client only displays the latest fetched value.
type Chat struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	Title       string    `json:"title"`
	CreatedAt   Timestamp `json:"created_at"`
}

// DisplayTitle returns the title, or UntitledChat when it is blank.
func (c Chat) DisplayTitle() string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	return UntitledChat
}

// HasPlaceholderTitle reports whether the chat still carries the title it was
// created with (or none), meaning the server may rename it after an exchange.
func (c Chat) HasPlaceholderTitle(newChatTitle string) bool {
	t := strings.TrimSpace(c.Title)
	return t == "" || t == strings.TrimSpace(newChatTitle)
}
