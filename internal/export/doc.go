// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chat transcripts to files.
//
// # Supported Formats
//
//   - Markdown: human-readable, with optional YAML frontmatter
//   - JSON: the chat and its messages as returned by the backend
//
// # Usage
//
//	t := export.Transcript{Chat: chat, Messages: msgs}
//	path, err := export.ExportToFile(t, export.NewMarkdownExporter(nil), nil)
package export
