// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-chat/internal/config"
	"github.com/jeranaias/rigrun-chat/internal/transport"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	verbose     bool
	baseURLFlag string

	// Loaded by the root pre-run
	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "rigrun-chat",
	Short: "Streaming chat client for rigrun",
	Long: `rigrun-chat talks to a rigrun chat backend: it lists and manages chats,
streams assistant responses as they are generated, and lets you stop a
response mid-stream while keeping what arrived.

Start an interactive session with:
  rigrun-chat chat`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipSetup(cmd) {
			return nil
		}
		return setup(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLog != nil {
			closeLog()
			closeLog = nil
		}
	},
}

// skipSetup reports whether cmd runs without loading configuration.
func skipSetup(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "path", "init":
		return true
	}
	return false
}

// setup loads configuration, applies global flags and configures logging.
func setup(cmd *cobra.Command) error {
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromPath(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if baseURLFlag != "" {
		cfg.Server.BaseURL = baseURLFlag
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	logger, closeLog = config.SetupLogger(cmd.ErrOrStderr(), cfg.Log.File, level)
	return nil
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(v, commit, date string) {
	version, gitCommit, buildDate = v, commit, date
	rootCmd.Version = v
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var shown *reportedError
		if !errors.As(err, &shown) {
			fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:")+" "+errorMessage(err))
		}
		return 1
	}
	return 0
}

// reportedError marks an error the command already printed.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// errorMessage returns the user-facing text for err.
func errorMessage(err error) string {
	if transport.IsAuth(err) {
		return transport.Detail(err) + " (run `rigrun-chat token set`)"
	}
	var te *transport.TransportError
	if errors.As(err, &te) {
		return transport.Detail(err)
	}
	return err.Error()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ~/.rigrun-chat/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&baseURLFlag, "base-url", "", "backend URL (overrides server.base_url)")
}
