// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// isolate points the config directory at a temp dir and clears RIGCHAT_* vars.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RIGCHAT_HOME", dir)
	for _, key := range []string{
		"RIGCHAT_BASE_URL", "RIGCHAT_TOKEN", "RIGCHAT_WORKSPACE",
		"RIGCHAT_AGENT", "RIGCHAT_LOG_LEVEL", "RIGCHAT_ARCHIVE",
	} {
		t.Setenv(key, "")
	}
	return dir
}

// =============================================================================
// LOAD TESTS
// =============================================================================

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Chat.NewChatTitle != "New Chat" {
		t.Errorf("NewChatTitle = %q", cfg.Chat.NewChatTitle)
	}
	if cfg.Chat.StopMarker != " [Stopped]" {
		t.Errorf("StopMarker = %q", cfg.Chat.StopMarker)
	}
	if !cfg.UI.Markdown || !cfg.Archive.Enabled {
		t.Error("expected markdown and archive enabled by default")
	}
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	content := `
[server]
base_url = "https://chat.example.com/api/"

[chat]
agent_mode = true
default_workspace = "ws-1"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Server.BaseURL != "https://chat.example.com/api" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.Server.BaseURL)
	}
	if !cfg.Chat.AgentMode || cfg.Chat.DefaultWorkspace != "ws-1" {
		t.Errorf("chat section not applied: %+v", cfg.Chat)
	}
	if cfg.Server.RequestTimeoutSecs != 30 {
		t.Errorf("RequestTimeoutSecs = %d, want default 30", cfg.Server.RequestTimeoutSecs)
	}
	if !cfg.UI.Markdown {
		t.Error("absent ui.markdown should keep its default")
	}

	if runtime.GOOS != "windows" {
		info, _ := os.Stat(path)
		if info.Mode().Perm() != 0600 {
			t.Errorf("permissions not tightened: %o", info.Mode().Perm())
		}
	}
}

func TestLoadFromPath_InvalidTOML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[server\nbase_url="), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Error("expected decode error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("RIGCHAT_BASE_URL", "http://backend:9000")
	t.Setenv("RIGCHAT_TOKEN", "tok")
	t.Setenv("RIGCHAT_WORKSPACE", "ws-9")
	t.Setenv("RIGCHAT_AGENT", "true")
	t.Setenv("RIGCHAT_LOG_LEVEL", "debug")
	t.Setenv("RIGCHAT_ARCHIVE", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.BaseURL != "http://backend:9000" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Auth.EnvToken != "tok" {
		t.Errorf("EnvToken = %q", cfg.Auth.EnvToken)
	}
	if cfg.Chat.DefaultWorkspace != "ws-9" || !cfg.Chat.AgentMode {
		t.Errorf("chat overrides not applied: %+v", cfg.Chat)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel = %v", cfg.SlogLevel())
	}
	if cfg.Archive.Enabled {
		t.Error("RIGCHAT_ARCHIVE=0 should disable the archive")
	}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad scheme", func(c *Config) { c.Server.BaseURL = "ftp://x" }, "server.base_url"},
		{"no host", func(c *Config) { c.Server.BaseURL = "http://" }, "server.base_url"},
		{"negative rps", func(c *Config) { c.Transport.RequestsPerSecond = -1 }, "transport.requests_per_second"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"negative wrap", func(c *Config) { c.UI.WordWrap = -5 }, "ui.word_wrap"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() = %v, want ValidateErrors", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("error %q does not mention %s", err, tc.field)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

// =============================================================================
// SAVE / GET TESTS
// =============================================================================

func TestSaveTOML_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "sub", "config.toml")

	cfg := Default()
	cfg.Chat.DefaultWorkspace = "ws-2"
	cfg.Auth.EnvToken = "never-written"
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "never-written") {
		t.Error("env token leaked into config file")
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Chat.DefaultWorkspace != "ws-2" {
		t.Errorf("DefaultWorkspace = %q", loaded.Chat.DefaultWorkspace)
	}
}

func TestGet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("server.base_url")
	if err != nil || v != "http://localhost:8000" {
		t.Errorf("Get(server.base_url) = %v, %v", v, err)
	}
	v, err = cfg.Get("ui.word_wrap")
	if err != nil || v != 80 {
		t.Errorf("Get(ui.word_wrap) = %v, %v", v, err)
	}
	if _, err := cfg.Get("server.nope"); err == nil {
		t.Error("expected unknown field error")
	}
	if _, err := cfg.Get("server.base_url.x"); err == nil {
		t.Error("expected not-a-section error")
	}
	if _, err := cfg.Get("auth.EnvToken"); err == nil {
		t.Error("untagged fields must not be reachable")
	}
}

func TestPathsResolveUnderConfigDir(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	tok, err := cfg.TokenPath()
	if err != nil || tok != filepath.Join(dir, "token") {
		t.Errorf("TokenPath = %q, %v", tok, err)
	}
	db, err := cfg.ArchivePath()
	if err != nil || db != filepath.Join(dir, "archive.db") {
		t.Errorf("ArchivePath = %q, %v", db, err)
	}

	cfg.Archive.Path = "/var/tmp/a.db"
	db, _ = cfg.ArchivePath()
	if db != "/var/tmp/a.db" {
		t.Errorf("explicit ArchivePath = %q", db)
	}
}

// =============================================================================
// LOGGING TESTS
// =============================================================================

func TestSetupLoggerWithWriters_FansOut(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("stream opened", "chat_id", "c1")
	logger.Debug("hidden")

	if !strings.Contains(stderr.String(), "stream opened") {
		t.Errorf("stderr missing record: %q", stderr.String())
	}
	if !strings.Contains(file.String(), `"chat_id":"c1"`) {
		t.Errorf("file missing JSON record: %q", file.String())
	}
	if strings.Contains(stderr.String(), "hidden") {
		t.Error("debug record should be filtered at info level")
	}
}

func TestSetupLogger_File(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "chat.log")

	logger, cleanup := SetupLogger(&stderr, path, slog.LevelWarn)
	logger.Warn("request failed", "status", 500)
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"status":500`) {
		t.Errorf("log file = %q", data)
	}
}
