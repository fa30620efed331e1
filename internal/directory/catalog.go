// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import "github.com/jeranaias/rigrun-chat/internal/model"

// Catalog is the ordered chat list of one workspace.
type Catalog struct {
	workspaceID string
	chats       []model.Chat
}

// NewCatalog returns an empty catalog for workspaceID.
func NewCatalog(workspaceID string) *Catalog {
	return &Catalog{workspaceID: workspaceID}
}

// WorkspaceID returns the workspace this catalog lists.
func (c *Catalog) WorkspaceID() string {
	return c.workspaceID
}

// Reset switches the catalog to another workspace and empties it.
func (c *Catalog) Reset(workspaceID string) {
	c.workspaceID = workspaceID
	c.chats = nil
}

// Replace sets the list wholesale, keeping server order.
func (c *Catalog) Replace(chats []model.Chat) {
	c.chats = append([]model.Chat(nil), chats...)
}

// Prepend puts chat first, dropping any older entry with the same id.
func (c *Catalog) Prepend(chat model.Chat) {
	c.Remove(chat.ID)
	c.chats = append([]model.Chat{chat}, c.chats...)
}

// Remove deletes the chat and reports whether it was present.
func (c *Catalog) Remove(id string) bool {
	i := c.Index(id)
	if i < 0 {
		return false
	}
	c.chats = append(c.chats[:i], c.chats[i+1:]...)
	return true
}

// Index returns the chat's position, or -1.
func (c *Catalog) Index(id string) int {
	for i, chat := range c.chats {
		if chat.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the chat with id.
func (c *Catalog) Find(id string) (model.Chat, bool) {
	if i := c.Index(id); i >= 0 {
		return c.chats[i], true
	}
	return model.Chat{}, false
}

// First returns the first chat in server order.
func (c *Catalog) First() (model.Chat, bool) {
	if len(c.chats) == 0 {
		return model.Chat{}, false
	}
	return c.chats[0], true
}

// Chats returns a copy of the list.
func (c *Catalog) Chats() []model.Chat {
	return append([]model.Chat(nil), c.chats...)
}

// Len returns the number of chats.
func (c *Catalog) Len() int {
	return len(c.chats)
}

// Title returns the chat's display title, or "" if it is not listed.
func (c *Catalog) Title(id string) string {
	if chat, ok := c.Find(id); ok {
		return chat.DisplayTitle()
	}
	return ""
}
