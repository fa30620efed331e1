// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

const (
	// SchemaVersion tracks the archive schema version for migrations
	SchemaVersion = 1
)

// Schema creates the archive tables.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- One row per finalized exchange
CREATE TABLE IF NOT EXISTS exchanges (
    id TEXT PRIMARY KEY,
    chat_id TEXT NOT NULL,
    workspace_id TEXT NOT NULL DEFAULT '',
    user_text TEXT NOT NULL,
    assistant_text TEXT NOT NULL DEFAULT '',
    outcome TEXT NOT NULL,          -- completed, cancelled, errored
    error TEXT NOT NULL DEFAULT '',
    agent_mode INTEGER NOT NULL DEFAULT 0,
    request_id TEXT NOT NULL DEFAULT '',
    started_at INTEGER NOT NULL,    -- Unix milliseconds
    finished_at INTEGER NOT NULL    -- Unix milliseconds
);

CREATE INDEX IF NOT EXISTS idx_exchanges_chat ON exchanges(chat_id, started_at);
`

// InitMetadata seeds the metadata table.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
`
