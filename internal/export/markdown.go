// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-chat/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown.
func (e *MarkdownExporter) Export(t Transcript) ([]byte, error) {
	if len(t.Messages) == 0 {
		return nil, ErrNoMessages
	}

	title := t.Chat.DisplayTitle()
	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(title))
		fmt.Fprintf(&sb, "chat_id: %s\n", escapeYAML(t.Chat.ID))
		if t.Chat.WorkspaceID != "" {
			fmt.Fprintf(&sb, "workspace_id: %s\n", escapeYAML(t.Chat.WorkspaceID))
		}
		if !t.Chat.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "created: %s\n", t.Chat.CreatedAt.Format(time.RFC3339))
		}
		fmt.Fprintf(&sb, "messages: %d\n", len(t.Messages))
		fmt.Fprintf(&sb, "exported: %s\n", e.options.now().Format(time.RFC3339))
		sb.WriteString("generator: rigrun-chat\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(title))

	for i, msg := range t.Messages {
		label := formatRoleLabel(msg.Role)
		if msg.CreatedAt != nil && !msg.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatTimestamp(msg.CreatedAt.Time))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")

		if i < len(t.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns ".md".
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func formatRoleLabel(role model.Role) string {
	switch role {
	case "":
		return "Unknown"
	case model.RoleUser, model.RoleAssistant:
		return role.DisplayName()
	default:
		runes := []rune(string(role))
		return strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
}

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	return strings.NewReplacer(
		"#", "\\#",
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
	).Replace(s)
}

// escapeYAML quotes values containing YAML special characters.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return "\"" + s + "\""
	}
	return s
}
