// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and logging setup for rigrun-chat.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: Backend location and request timeout
//   - ChatConfig: Session defaults (workspace, agent mode, titles, stop marker)
//   - TransportConfig: Request pacing and user agent
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RIGCHAT_*)
//   - ~/.rigrun-chat/config.toml (or $RIGCHAT_HOME/config.toml)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	logger, cleanup := config.SetupLogger(os.Stderr, cfg.Log.File, cfg.SlogLevel())
//	defer cleanup()
package config
