// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the chat client.
//
// # Key Functions
//
// Display:
//   - TruncateWidth: Terminal-cell aware truncation with ellipsis
//   - PadWidth: Right-pad to a display width
//   - Indent: Prefix every line of a block
//
// Files:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//   - ExpandHome: Resolve a leading ~ in configured paths
//
// # Usage
//
//	title := util.TruncateWidth(chat.DisplayTitle(), 40)
//	err := util.AtomicWriteFile(path, []byte(token), 0600)
package util
