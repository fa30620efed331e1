// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jeranaias/rigrun-chat/internal/auth"
	"github.com/jeranaias/rigrun-chat/internal/chat"
	"github.com/jeranaias/rigrun-chat/internal/config"
	"github.com/jeranaias/rigrun-chat/internal/directory"
	"github.com/jeranaias/rigrun-chat/internal/storage"
	"github.com/jeranaias/rigrun-chat/internal/stream"
	"github.com/jeranaias/rigrun-chat/internal/transport"
)

// app wires the backend clients for one command invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	tokens  *auth.FileStore // nil when RIGCHAT_TOKEN supplies the token
	session *auth.Session
	client  *transport.Client
	dir     *directory.Directory
	engine  *stream.Engine
	archive *storage.Archive
}

// newApp builds the clients from cfg. The archive is opened when enabled;
// failing to open it is logged and the archive skipped.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	logger = config.OrDiscard(logger)
	a := &app{cfg: cfg, logger: logger}

	var store auth.TokenStore
	if cfg.Auth.EnvToken != "" {
		store = auth.NewMemoryStore(cfg.Auth.EnvToken)
	} else {
		path, err := cfg.TokenPath()
		if err != nil {
			return nil, err
		}
		a.tokens = auth.NewFileStore(path)
		store = a.tokens
	}
	a.session = auth.NewSession(store, logger)

	opts := []transport.Option{
		transport.WithLogger(logger),
		transport.WithTimeout(cfg.RequestTimeout()),
		transport.WithUserAgent(fmt.Sprintf("%s/%s", cfg.Transport.UserAgent, version)),
	}
	if cfg.Transport.RequestsPerSecond > 0 {
		opts = append(opts, transport.WithRateLimit(cfg.Transport.RequestsPerSecond, cfg.Transport.Burst))
	}
	a.client = transport.New(cfg.Server.BaseURL, a.session, opts...)
	a.dir = directory.New(a.client, logger)
	a.engine = stream.NewEngine(a.client, logger)

	if cfg.Archive.Enabled {
		if path, err := cfg.ArchivePath(); err != nil {
			logger.Warn("archive disabled", "error", err)
		} else if archive, err := storage.OpenArchive(path); err != nil {
			logger.Warn("archive disabled", "path", path, "error", err)
		} else {
			a.archive = archive
		}
	}
	return a, nil
}

// controller creates a session controller for workspaceID.
func (a *app) controller(workspaceID string, agent bool) *chat.Controller {
	opts := []chat.Option{
		chat.WithLogger(a.logger),
		chat.WithWorkspace(workspaceID),
		chat.WithAgentMode(agent),
		chat.WithStopMarker(a.cfg.Chat.StopMarker),
		chat.WithNewChatTitle(a.cfg.Chat.NewChatTitle),
	}
	if a.archive != nil {
		opts = append(opts, chat.WithRecorder(a.archive))
	}
	return chat.New(a.dir, a.engine, opts...)
}

// watchTokens reloads the token file on change until ctx is done.
func (a *app) watchTokens(ctx context.Context) {
	if a.tokens == nil || !a.cfg.Auth.WatchTokenFile {
		return
	}
	go func() {
		if err := a.tokens.Watch(ctx, a.logger); err != nil && ctx.Err() == nil {
			a.logger.Debug("token watch stopped", "error", err)
		}
	}()
}

// resolveWorkspace picks the workspace: the flag, then the configured
// default, then the first workspace the backend lists.
func (a *app) resolveWorkspace(ctx context.Context, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if a.cfg.Chat.DefaultWorkspace != "" {
		return a.cfg.Chat.DefaultWorkspace, nil
	}
	workspaces, err := a.dir.ListWorkspaces(ctx)
	if err != nil {
		return "", err
	}
	if len(workspaces) == 0 {
		return "", errors.New("no workspace available; create one on the server first")
	}
	a.logger.Debug("using first workspace", "workspace_id", workspaces[0].ID)
	return workspaces[0].ID, nil
}

// Close releases the archive.
func (a *app) Close() {
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.logger.Warn("failed to close archive", "error", err)
		}
	}
}
