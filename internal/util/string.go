// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Ellipsis is appended by TruncateWidth when text is cut.
const Ellipsis = "..."

// TruncateWidth truncates s so that it occupies at most maxWidth terminal
// cells, including the ellipsis. CJK and emoji count as two cells.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= len(Ellipsis) {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, Ellipsis)
}

// StringWidth returns the number of terminal cells s occupies.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// PadWidth right-pads s with spaces to width cells. Longer strings are
// returned unchanged.
func PadWidth(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// Indent prefixes every non-empty line of s.
func Indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
