// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/storage"
	"github.com/jeranaias/rigrun-chat/internal/util"
)

const (
	// titleWidth is the column width for chat titles in listings
	titleWidth = 40

	// previewWidth bounds archived message previews
	previewWidth = 60
)

// =============================================================================
// MARKDOWN
// =============================================================================

// markdownRenderer renders finished assistant messages. It passes text
// through unchanged when disabled or when rendering fails.
type markdownRenderer struct {
	r *glamour.TermRenderer
}

func newMarkdownRenderer(enabled bool, wordWrap int) *markdownRenderer {
	if !enabled {
		return &markdownRenderer{}
	}
	if wordWrap <= 0 {
		wordWrap = GetTerminalWidth()
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(markdownStyle()),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return &markdownRenderer{}
	}
	return &markdownRenderer{r: r}
}

// Render returns text rendered as markdown.
func (m *markdownRenderer) Render(text string) string {
	if m == nil || m.r == nil || strings.TrimSpace(text) == "" {
		return text
	}
	out, err := m.r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// =============================================================================
// LISTINGS
// =============================================================================

// printChatList prints chats numbered from 1, marking the selected one.
func printChatList(w io.Writer, chats []model.Chat, selected string) {
	if len(chats) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No chats in this workspace."))
		return
	}
	for i, c := range chats {
		title := util.PadWidth(util.TruncateWidth(c.DisplayTitle(), titleWidth), titleWidth)
		row := fmt.Sprintf("%3d. %s  %s", i+1, title, DimStyle.Render(c.ID))
		if c.ID == selected {
			fmt.Fprintln(w, SelectedStyle.Render("*")+row)
			continue
		}
		fmt.Fprintln(w, " "+row)
	}
}

// printMessages prints a chat history, rendering assistant content as markdown.
func printMessages(w io.Writer, msgs []model.Message, md *markdownRenderer) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No messages yet."))
		return
	}
	for _, m := range msgs {
		switch m.Role {
		case model.RoleUser:
			fmt.Fprintln(w, UserRoleStyle.Render(m.Role.DisplayName()))
			fmt.Fprintln(w, m.Content)
		default:
			fmt.Fprintln(w, AssistantRoleStyle.Render(m.Role.DisplayName()))
			fmt.Fprintln(w, md.Render(m.Content))
		}
		fmt.Fprintln(w)
	}
}

// printExchanges prints archived exchanges oldest first.
func printExchanges(w io.Writer, exchanges []storage.Exchange) {
	if len(exchanges) == 0 {
		fmt.Fprintln(w, DimStyle.Render("Archive is empty."))
		return
	}
	for _, ex := range exchanges {
		user := model.Message{Content: ex.UserText}.Preview(previewWidth)
		reply := model.Message{Content: ex.AssistantText}.Preview(previewWidth)
		fmt.Fprintf(w, "%s  %s  %s\n",
			DimStyle.Render(ex.StartedAt.Local().Format("2006-01-02 15:04")),
			outcomeLabel(ex.Outcome),
			DimStyle.Render(ex.ChatID))
		fmt.Fprintln(w, util.Indent("> "+user, "  "))
		if reply != "" {
			fmt.Fprintln(w, util.Indent(reply, "  "))
		}
		if ex.Error != "" {
			fmt.Fprintln(w, util.Indent(ErrorStyle.Render("Error: ")+ex.Error, "  "))
		}
	}
}

func outcomeLabel(outcome string) string {
	label := util.PadWidth(outcome, 9)
	switch outcome {
	case "completed":
		return SuccessStyle.Render(label)
	case "cancelled":
		return WarningStyle.Render(label)
	default:
		return ErrorStyle.Render(label)
	}
}
