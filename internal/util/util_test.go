// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")

	if err := AtomicWriteFile(path, []byte("secret"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != "secret" {
		t.Errorf("Content mismatch: got %q", content)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("perm = %o, want 0600", info.Mode().Perm())
		}
	}
}

func TestAtomicWriteFile_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.toml")

	if err := AtomicWriteFile(path, []byte("one"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := AtomicWriteFile(path, []byte("two"), 0600); err != nil {
		t.Fatal(err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "two" {
		t.Errorf("got %q, want %q", content, "two")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected no temp files left behind, found %d entries", len(entries))
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/x/y.db", filepath.Join(home, "x/y.db")},
		{"/abs/path", "/abs/path"},
		{"rel/~path", "rel/~path"},
	}
	for _, tc := range tests {
		got, err := ExpandHome(tc.in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// =============================================================================
// DISPLAY TESTS
// =============================================================================

func TestTruncateWidth(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"fits", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"ascii cut", "hello world", 8, "hello..."},
		{"zero", "hello", 0, ""},
		{"wide runes", "日本語テキスト", 9, "日本語..."},
		{"tiny width", "hello", 2, "he"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := TruncateWidth(tc.in, tc.width)
			if got != tc.want {
				t.Errorf("TruncateWidth(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
			}
			if StringWidth(got) > tc.width {
				t.Errorf("result %q exceeds width %d", got, tc.width)
			}
		})
	}
}

func TestPadWidth(t *testing.T) {
	if got := PadWidth("ab", 4); got != "ab  " {
		t.Errorf("PadWidth = %q", got)
	}
	if got := PadWidth("日本", 5); got != "日本 " {
		t.Errorf("PadWidth wide = %q", got)
	}
}

func TestIndent(t *testing.T) {
	if got := Indent("a\n\nb", "  "); got != "  a\n\n  b" {
		t.Errorf("Indent = %q", got)
	}
}
