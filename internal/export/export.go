// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

// ErrNoMessages is returned when exporting a chat with an empty history.
var ErrNoMessages = errors.New("chat has no messages")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Transcript is a chat and its full message history.
type Transcript struct {
	Chat     model.Chat      `json:"chat"`
	Messages []model.Message `json:"messages"`
}

// Exporter converts a transcript to a file format.
type Exporter interface {
	// Export returns the encoded transcript.
	Export(t Transcript) ([]byte, error)

	// FileExtension returns the file extension including the dot.
	FileExtension() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where files are written. Default: current directory.
	OutputDir string

	// IncludeMetadata adds a frontmatter header to Markdown output.
	IncludeMetadata bool

	// Now stamps the export. Default: time.Now.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:       ".",
		IncludeMetadata: true,
		Now:             time.Now,
	}
}

func (o *Options) now() time.Time {
	if o == nil || o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ForFormat returns the exporter for a format name.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "markdown", "md", "":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// ExportToFile writes t to a new file in opts.OutputDir and returns its path.
func ExportToFile(t Transcript, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	filename := fmt.Sprintf("chat_%s_%s%s",
		sanitizeFilename(t.Chat.DisplayTitle()),
		opts.now().Format("20060102_150405"),
		exporter.FileExtension(),
	)

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	outputPath := filepath.Join(dir, filename)
	if err := util.AtomicWriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(s)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			result = append(result, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			result = append(result, '_')
		case r < 32 || r == 127:
			result = append(result, '-')
		default:
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "chat"
	}
	return string(result)
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
