// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the local transcript archive for rigrun-chat.
//
// Every finalized exchange (user message plus the assistant response, however
// it ended) is recorded in a SQLite database, by default
// ~/.rigrun-chat/archive.db. The archive is a local record only; the backend
// remains the source of truth for chat history.
//
// # Usage
//
//	archive, err := storage.OpenArchive(cfg.ArchivePath())
//	if err != nil {
//	    return err
//	}
//	defer archive.Close()
//
//	recent, err := archive.ListExchanges(ctx, chatID, 20)
package storage
