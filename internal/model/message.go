// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for workspaces, chats and messages.
package model

import (
	"strings"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether the role is one the backend produces.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a chat.
//
// ID and CreatedAt are empty for optimistic entries that the server has not
// persisted yet (the user message and the assistant placeholder of a send).
type Message struct {
	ID        string     `json:"id,omitempty"`
	ChatID    string     `json:"chat_id,omitempty"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	CreatedAt *Timestamp `json:"created_at,omitempty"`
}

// NewUserMessage creates an optimistic user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewPlaceholder creates the empty assistant message that a stream fills in.
func NewPlaceholder() Message {
	return Message{Role: RoleAssistant}
}

// IsPersisted returns true if the server assigned this message an id.
func (m Message) IsPersisted() bool {
	return m.ID != ""
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// Preview returns a single-line, rune-safe preview of the content.
func (m Message) Preview(maxLen int) string {
	content := strings.Join(strings.Fields(m.Content), " ")
	runes := []rune(content)
	if maxLen <= 3 || len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// CloneMessages returns a copy of msgs that shares no backing array.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
