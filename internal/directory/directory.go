// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/jeranaias/rigrun-chat/internal/config"
	"github.com/jeranaias/rigrun-chat/internal/model"
)

// ErrMissingID is returned when a required id argument is blank.
var ErrMissingID = errors.New("id is required")

// JSONDoer performs one JSON request. *transport.Client satisfies it.
type JSONDoer interface {
	DoJSON(ctx context.Context, method, path string, body, out any) error
}

// Directory talks to the chat and message endpoints.
type Directory struct {
	client JSONDoer
	logger *slog.Logger
}

// New creates a directory over client.
func New(client JSONDoer, logger *slog.Logger) *Directory {
	return &Directory{client: client, logger: config.OrDiscard(logger)}
}

type createChatRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Title       string `json:"title"`
}

func requireID(kind, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%s %w", kind, ErrMissingID)
	}
	return id, nil
}

// ListWorkspaces returns the caller's workspaces.
func (d *Directory) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	var workspaces []model.Workspace
	if err := d.client.DoJSON(ctx, http.MethodGet, "/workspaces", nil, &workspaces); err != nil {
		d.logger.Warn("list workspaces failed", "error", err)
		return nil, err
	}
	return workspaces, nil
}

// ListChats returns the workspace's chats in server order (newest first).
func (d *Directory) ListChats(ctx context.Context, workspaceID string) ([]model.Chat, error) {
	workspaceID, err := requireID("workspace", workspaceID)
	if err != nil {
		return nil, err
	}

	var chats []model.Chat
	path := "/chats?" + url.Values{"workspace_id": {workspaceID}}.Encode()
	if err := d.client.DoJSON(ctx, http.MethodGet, path, nil, &chats); err != nil {
		d.logger.Warn("list chats failed", "workspace_id", workspaceID, "error", err)
		return nil, err
	}
	if chats == nil {
		chats = []model.Chat{}
	}
	return chats, nil
}

// CreateChat creates a chat with title in the workspace.
func (d *Directory) CreateChat(ctx context.Context, workspaceID, title string) (model.Chat, error) {
	workspaceID, err := requireID("workspace", workspaceID)
	if err != nil {
		return model.Chat{}, err
	}

	var chat model.Chat
	req := createChatRequest{WorkspaceID: workspaceID, Title: title}
	if err := d.client.DoJSON(ctx, http.MethodPost, "/chats", req, &chat); err != nil {
		d.logger.Warn("create chat failed", "workspace_id", workspaceID, "error", err)
		return model.Chat{}, err
	}
	if chat.WorkspaceID == "" {
		chat.WorkspaceID = workspaceID
	}
	d.logger.Info("chat created", "chat_id", chat.ID, "workspace_id", workspaceID)
	return chat, nil
}

// DeleteChat deletes the chat and its messages.
func (d *Directory) DeleteChat(ctx context.Context, chatID string) error {
	chatID, err := requireID("chat", chatID)
	if err != nil {
		return err
	}
	if err := d.client.DoJSON(ctx, http.MethodDelete, "/chats/"+url.PathEscape(chatID), nil, nil); err != nil {
		d.logger.Warn("delete chat failed", "chat_id", chatID, "error", err)
		return err
	}
	d.logger.Info("chat deleted", "chat_id", chatID)
	return nil
}

// ClearChatMessages deletes every message of the chat; the chat remains.
func (d *Directory) ClearChatMessages(ctx context.Context, chatID string) error {
	chatID, err := requireID("chat", chatID)
	if err != nil {
		return err
	}
	path := "/chats/" + url.PathEscape(chatID) + "/clear"
	if err := d.client.DoJSON(ctx, http.MethodPost, path, nil, nil); err != nil {
		d.logger.Warn("clear chat failed", "chat_id", chatID, "error", err)
		return err
	}
	return nil
}

// LoadMessages returns the chat's full history in order.
func (d *Directory) LoadMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	chatID, err := requireID("chat", chatID)
	if err != nil {
		return nil, err
	}

	var msgs []model.Message
	path := "/messages?" + url.Values{"chat_id": {chatID}}.Encode()
	if err := d.client.DoJSON(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		d.logger.Warn("load messages failed", "chat_id", chatID, "error", err)
		return nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}
