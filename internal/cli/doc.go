// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the rigrun-chat command line.
//
// # Commands
//
//   - chat: interactive session with line editing and history
//   - send: stream one answer and exit
//   - chats list|new|delete|clear, messages, workspaces: directory access
//   - token set|clear|status: manage the bearer token
//   - archive: browse the local transcript archive
//   - config show|path|init|get: inspect configuration
//   - version
//
// Every command writes to the cobra command's output streams so tests can
// capture it. Errors are printed once by Execute as "Error: <msg>".
package cli
