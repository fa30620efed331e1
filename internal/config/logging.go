// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger creates the process logger: text to stderr and, when logFile is
// set, JSON to that file. The returned cleanup closes the file.
func SetupLogger(stderr io.Writer, logFile string, level slog.Level) (*slog.Logger, func() error) {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	noop := func() error { return nil }

	if logFile == "" {
		return slog.New(stderrHandler), noop
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		logger := slog.New(stderrHandler)
		logger.Error("failed to create log directory, using stderr only", "error", err, "file", logFile)
		return logger, noop
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		logger := slog.New(stderrHandler)
		logger.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return logger, noop
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler)), file.Close
}

// SetupLoggerWithWriters creates a fan-out logger over arbitrary writers.
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard returns logger, or a discarding logger when it is nil.
func OrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return DiscardLogger()
	}
	return logger
}
