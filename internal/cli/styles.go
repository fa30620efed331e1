// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styling for rigrun-chat commands.
//
// Colors are disabled for non-TTY output and when NO_COLOR is set.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")). // Light gray
			Width(16)

	// ValueStyle is used for regular values
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")) // Off-white

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")). // Green
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Yellow/Orange

	// DimStyle is used for hints and secondary information
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")) // Dim gray

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // Dark gray

	// SelectedStyle marks the selected chat in listings
	SelectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")). // Bright green
			Bold(true)
)

// =============================================================================
// ROLE STYLES
// =============================================================================

var (
	// UserRoleStyle labels user messages
	UserRoleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")). // Blue
			Bold(true)

	// AssistantRoleStyle labels assistant messages
	AssistantRoleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("213")). // Pink
				Bold(true)
)

// RenderSeparator renders a horizontal separator of the given width.
func RenderSeparator(width int) string {
	if width <= 0 {
		width = 60
	}
	return SeparatorStyle.Render(strings.Repeat("-", width))
}

// RenderLabel renders a label/value row.
func RenderLabel(label, value string) string {
	return LabelStyle.Render(label+":") + " " + ValueStyle.Render(value)
}
