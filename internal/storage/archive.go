// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrClosed is returned by operations on a closed archive.
var ErrClosed = errors.New("archive is closed")

// DefaultListLimit caps ListExchanges when no limit is given.
const DefaultListLimit = 50

// =============================================================================
// EXCHANGE RECORD
// =============================================================================

// Exchange is one archived send: the user's text and how the response ended.
type Exchange struct {
	ID            string
	ChatID        string
	WorkspaceID   string
	UserText      string
	AssistantText string
	Outcome       string
	Error         string
	AgentMode     bool
	RequestID     string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Duration returns how long the exchange took.
func (e Exchange) Duration() time.Duration {
	if e.FinishedAt.Before(e.StartedAt) {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// =============================================================================
// ARCHIVE
// =============================================================================

// Archive is a SQLite-backed exchange log. Safe for concurrent use; Close
// must not race other calls.
type Archive struct {
	db   *sql.DB
	path string
}

// OpenArchive opens or creates the archive at path.
func OpenArchive(path string) (*Archive, error) {
	if path == "" {
		return nil, errors.New("archive path cannot be empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	if path != ":memory:" {
		// The archive holds conversation text
		_ = os.Chmod(path, 0600)
	}

	return &Archive{db: db, path: path}, nil
}

// Path returns the database file path.
func (a *Archive) Path() string {
	return a.path
}

// RecordExchange stores ex. A missing ID is generated.
func (a *Archive) RecordExchange(ctx context.Context, ex Exchange) error {
	if a == nil || a.db == nil {
		return ErrClosed
	}
	if ex.ChatID == "" {
		return errors.New("exchange has no chat id")
	}
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if ex.FinishedAt.IsZero() {
		ex.FinishedAt = time.Now()
	}
	if ex.StartedAt.IsZero() {
		ex.StartedAt = ex.FinishedAt
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO exchanges (id, chat_id, workspace_id, user_text, assistant_text,
			outcome, error, agent_mode, request_id, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ID, ex.ChatID, ex.WorkspaceID, ex.UserText, ex.AssistantText,
		ex.Outcome, ex.Error, boolToInt(ex.AgentMode), ex.RequestID,
		ex.StartedAt.UnixMilli(), ex.FinishedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}
	return nil
}

// ListExchanges returns the most recent exchanges, oldest first. An empty
// chatID lists across all chats. limit <= 0 uses DefaultListLimit.
func (a *Archive) ListExchanges(ctx context.Context, chatID string, limit int) ([]Exchange, error) {
	if a == nil || a.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, chat_id, workspace_id, user_text, assistant_text, outcome, error,
			agent_mode, request_id, started_at, finished_at
		FROM exchanges`
	args := []any{}
	if chatID != "" {
		query += " WHERE chat_id = ?"
		args = append(args, chatID)
	}
	query += " ORDER BY started_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var ex Exchange
		var agent int
		var started, finished int64
		if err := rows.Scan(&ex.ID, &ex.ChatID, &ex.WorkspaceID, &ex.UserText, &ex.AssistantText,
			&ex.Outcome, &ex.Error, &agent, &ex.RequestID, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		ex.AgentMode = agent != 0
		ex.StartedAt = time.UnixMilli(started)
		ex.FinishedAt = time.UnixMilli(finished)
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; callers print oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Count returns the number of archived exchanges.
func (a *Archive) Count(ctx context.Context) (int, error) {
	if a == nil || a.db == nil {
		return 0, ErrClosed
	}
	var n int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM exchanges").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
