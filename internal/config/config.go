// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigrun-chat configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" json:"server"`
	Auth      AuthConfig      `toml:"auth" json:"auth"`
	Chat      ChatConfig      `toml:"chat" json:"chat"`
	Transport TransportConfig `toml:"transport" json:"transport"`
	Archive   ArchiveConfig   `toml:"archive" json:"archive"`
	Log       LogConfig       `toml:"log" json:"log"`
	UI        UIConfig        `toml:"ui" json:"ui"`
}

// ServerConfig locates the chat backend.
type ServerConfig struct {
	// BaseURL is the API root, e.g. "http://localhost:8000".
	BaseURL string `toml:"base_url" json:"base_url"`
	// RequestTimeoutSecs bounds non-streaming requests. Streams have no timeout.
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs"`
}

// AuthConfig controls where the bearer token lives.
type AuthConfig struct {
	// TokenFile defaults to <config dir>/token.
	TokenFile string `toml:"token_file" json:"token_file"`
	// WatchTokenFile reloads the token when another process rewrites the file.
	WatchTokenFile bool `toml:"watch_token_file" json:"watch_token_file"`

	// EnvToken is set from RIGCHAT_TOKEN and never written to disk.
	EnvToken string `toml:"-" json:"-"`
}

// ChatConfig holds session defaults.
type ChatConfig struct {
	DefaultWorkspace string `toml:"default_workspace" json:"default_workspace"`
	AgentMode        bool   `toml:"agent_mode" json:"agent_mode"`
	// NewChatTitle is sent when creating a chat without an explicit title.
	NewChatTitle string `toml:"new_chat_title" json:"new_chat_title"`
	// StopMarker is appended to an assistant message the user interrupted.
	StopMarker string `toml:"stop_marker" json:"stop_marker"`
}

// TransportConfig tunes the HTTP client.
type TransportConfig struct {
	// RequestsPerSecond paces outgoing requests; 0 disables pacing.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst"`
	UserAgent         string  `toml:"user_agent" json:"user_agent"`
}

// ArchiveConfig controls the local transcript archive.
type ArchiveConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// Path defaults to <config dir>/archive.db.
	Path string `toml:"path" json:"path"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" json:"level"`
	// File receives JSON logs in addition to stderr. Empty disables it.
	File string `toml:"file" json:"file"`
}

// UIConfig controls terminal presentation.
type UIConfig struct {
	Markdown bool `toml:"markdown" json:"markdown"`
	WordWrap int  `toml:"word_wrap" json:"word_wrap"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultNewChatTitle matches the title the backend treats as "not yet named".
	DefaultNewChatTitle = "New Chat"
	// DefaultStopMarker is appended to interrupted responses.
	DefaultStopMarker = " [Stopped]"
)

// Default returns a configuration with built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:            "http://localhost:8000",
			RequestTimeoutSecs: 30,
		},
		Auth: AuthConfig{
			WatchTokenFile: true,
		},
		Chat: ChatConfig{
			NewChatTitle: DefaultNewChatTitle,
			StopMarker:   DefaultStopMarker,
		},
		Transport: TransportConfig{
			Burst:     1,
			UserAgent: "rigrun-chat",
		},
		Archive: ArchiveConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "warn",
		},
		UI: UIConfig{
			Markdown: true,
			WordWrap: 80,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the configuration directory. RIGCHAT_HOME overrides the
// default of ~/.rigrun-chat.
func ConfigDir() (string, error) {
	if dir := os.Getenv("RIGCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigrun-chat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// TokenPath returns the resolved token file path.
func (c *Config) TokenPath() (string, error) {
	return c.resolvePath(c.Auth.TokenFile, "token")
}

// ArchivePath returns the resolved archive database path.
func (c *Config) ArchivePath() (string, error) {
	return c.resolvePath(c.Archive.Path, "archive.db")
}

func (c *Config) resolvePath(configured, fallback string) (string, error) {
	if configured != "" {
		return util.ExpandHome(configured)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fallback), nil
}

// RequestTimeout returns the non-streaming request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSecs) * time.Second
}

// SlogLevel converts Log.Level to a slog.Level, defaulting to warn.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// ensureSecurePermissions tightens a config file to 0600.
// SECURITY: The file may carry a token path and workspace ids.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the default config file if it exists, then applies environment
// overrides, defaults and validation. A missing file is not an error.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from path. Keys absent from the file keep
// their default values.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if err := ensureSecurePermissions(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", statErr)
	}

	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults replaces zero values that are never valid with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = defaults.Server.BaseURL
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = defaults.Server.RequestTimeoutSecs
	}
	if strings.TrimSpace(cfg.Chat.NewChatTitle) == "" {
		cfg.Chat.NewChatTitle = defaults.Chat.NewChatTitle
	}
	if cfg.Transport.Burst == 0 {
		cfg.Transport.Burst = defaults.Transport.Burst
	}
	if cfg.Transport.UserAgent == "" {
		cfg.Transport.UserAgent = defaults.Transport.UserAgent
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML.
// SECURITY: Written atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# rigrun-chat configuration file\n")
	buf.WriteString("# Generated by rigrun-chat - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "server.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.Server.BaseURL),
		})
	}
	if c.Server.RequestTimeoutSecs < 0 || c.Server.RequestTimeoutSecs > 3600 {
		errs = append(errs, ValidationError{
			Field:   "server.request_timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 3600, got %d", c.Server.RequestTimeoutSecs),
		})
	}
	if c.Transport.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{
			Field:   "transport.requests_per_second",
			Message: "must not be negative",
		})
	}
	if c.Transport.Burst < 0 {
		errs = append(errs, ValidationError{
			Field:   "transport.burst",
			Message: "must not be negative",
		})
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}
	if c.UI.WordWrap < 0 {
		errs = append(errs, ValidationError{
			Field:   "ui.word_wrap",
			Message: "must not be negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - RIGCHAT_BASE_URL: overrides server.base_url
//   - RIGCHAT_TOKEN: in-memory bearer token, takes precedence over the token file
//   - RIGCHAT_WORKSPACE: overrides chat.default_workspace
//   - RIGCHAT_AGENT: overrides chat.agent_mode
//   - RIGCHAT_LOG_LEVEL: overrides log.level
//   - RIGCHAT_ARCHIVE: overrides archive.enabled
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RIGCHAT_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("RIGCHAT_TOKEN"); v != "" {
		c.Auth.EnvToken = v
	}
	if v := os.Getenv("RIGCHAT_WORKSPACE"); v != "" {
		c.Chat.DefaultWorkspace = v
	}
	if v := os.Getenv("RIGCHAT_AGENT"); v != "" {
		c.Chat.AgentMode = parseBool(v)
	}
	if v := os.Getenv("RIGCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("RIGCHAT_ARCHIVE"); v != "" {
		c.Archive.Enabled = parseBool(v)
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

// =============================================================================
// DOT NOTATION ACCESS
// =============================================================================

// Get retrieves a value by its TOML key path, e.g. "server.base_url".
func (c *Config) Get(key string) (interface{}, error) {
	if key == "" {
		return nil, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTOMLTag(v, part)
		if !ok {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field.Interface(), nil
		}
		if field.Kind() != reflect.Struct {
			return nil, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return nil, fmt.Errorf("invalid key: %s", key)
}

func fieldByTOMLTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag != "" && tag != "-" && strings.EqualFold(tag, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// String returns an indented JSON rendering for display.
// SECURITY: EnvToken is excluded by its json tag.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
