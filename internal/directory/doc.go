// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package directory lists, creates, deletes and clears chats and loads their
// message history from the backend.
//
// Directory wraps the JSON endpoints; Catalog is the in-memory, server-ordered
// chat list for one workspace. Catalog is owned by the session event loop and
// performs no locking.
package directory
