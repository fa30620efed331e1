// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jeranaias/rigrun-chat/internal/model"
)

// =============================================================================
// HELPERS
// =============================================================================

func TestResolveChatRef(t *testing.T) {
	chats := []model.Chat{{ID: "a1", Title: "Alpha"}, {ID: "b2", Title: "Beta"}, {ID: "7", Title: "Seven"}}

	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"1", "a1", false},
		{"2", "b2", false},
		{"b2", "b2", false},
		{" a1 ", "a1", false},
		{"7", "7", false}, // out of range as a position, matches an id
		{"9", "", true},
		{"zz", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := resolveChatRef(chats, tt.ref)
		if tt.wantErr {
			if err == nil {
				t.Errorf("resolveChatRef(%q) expected error", tt.ref)
			}
			continue
		}
		if err != nil || got.ID != tt.want {
			t.Errorf("resolveChatRef(%q) = %q, %v; want %q", tt.ref, got.ID, err, tt.want)
		}
	}
}

func TestParseToggle(t *testing.T) {
	tests := []struct {
		arg     string
		current bool
		want    bool
		wantErr bool
	}{
		{"", false, true, false},
		{"", true, false, false},
		{"on", false, true, false},
		{"OFF", true, false, false},
		{"yes", false, true, false},
		{"0", true, false, false},
		{"maybe", true, true, true},
	}
	for _, tt := range tests {
		got, err := parseToggle(tt.arg, tt.current)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseToggle(%q, %v) = %v, %v", tt.arg, tt.current, got, err)
		}
	}
}

func TestMaskToken(t *testing.T) {
	if got := maskToken("short"); got != "********" {
		t.Errorf("maskToken(short) = %q", got)
	}
	if got := maskToken("abcd1234efgh5678"); got != "abcd...5678" {
		t.Errorf("maskToken = %q", got)
	}
}

func TestTruncatePrompt(t *testing.T) {
	if got := truncatePrompt("Short"); got != "Short" {
		t.Errorf("got %q", got)
	}
	long := strings.Repeat("é", 30)
	got := truncatePrompt(long)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != 24 {
		t.Errorf("truncatePrompt = %q", got)
	}
}

func TestComplete(t *testing.T) {
	r := &repl{}
	got := r.complete("/c")
	if len(got) != 2 || got[0] != "/chats" || got[1] != "/clear" {
		t.Errorf("complete(/c) = %v", got)
	}
	if got := r.complete("hello"); got != nil {
		t.Errorf("complete(hello) = %v", got)
	}
}

func TestPrintChatList(t *testing.T) {
	var buf bytes.Buffer
	printChatList(&buf, []model.Chat{
		{ID: "c1", Title: "First"},
		{ID: "c2", Title: ""},
		{ID: "c3", Title: strings.Repeat("long title ", 10)},
	}, "c2")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "*") || !strings.Contains(lines[1], model.UntitledChat) {
		t.Errorf("selected row = %q", lines[1])
	}
	if strings.HasPrefix(lines[0], "*") {
		t.Errorf("unselected row marked: %q", lines[0])
	}
	if !strings.Contains(lines[2], "...") {
		t.Errorf("long title not truncated: %q", lines[2])
	}

	buf.Reset()
	printChatList(&buf, nil, "")
	if !strings.Contains(buf.String(), "No chats") {
		t.Errorf("empty list = %q", buf.String())
	}
}

func TestMarkdownRendererDisabled(t *testing.T) {
	md := newMarkdownRenderer(false, 80)
	if got := md.Render("# Title"); got != "# Title" {
		t.Errorf("disabled renderer changed text: %q", got)
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func resetFlags() {
	configFile, verbose, baseURLFlag = "", false, ""
	chatWorkspace, chatSelect, chatAgent = "", "", false
	sendWorkspace, sendChat, sendAgent, sendNew, sendMarkdown = "", "", false, false, false
	chatsWorkspace, chatsYes = "", false
	tokenCheck = false
	archiveChat, archiveLimit = "", 20
	configForce = false
	exportWorkspace, exportFormat, exportOutput, exportStdout, exportNoMeta = "", "markdown", ".", false, false
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// testEnv points the CLI at an isolated home and, when handler is non-nil,
// at a test server.
func testEnv(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	t.Setenv("RIGCHAT_HOME", t.TempDir())
	t.Setenv("RIGCHAT_TOKEN", "")
	t.Setenv("RIGCHAT_WORKSPACE", "")
	t.Setenv("RIGCHAT_AGENT", "")
	t.Setenv("RIGCHAT_LOG_LEVEL", "")
	t.Setenv("RIGCHAT_ARCHIVE", "")
	t.Setenv("RIGCHAT_BASE_URL", "")
	if handler != nil {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		t.Setenv("RIGCHAT_BASE_URL", srv.URL)
		t.Setenv("RIGCHAT_TOKEN", "test-token-123456")
	}
}

func fakeServer(t *testing.T, streamStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token-123456" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.URL.Path == "/workspaces":
			io.WriteString(w, `[{"id":"w1","name":"Personal"}]`)
		case r.URL.Path == "/chats" && r.Method == http.MethodGet:
			io.WriteString(w, `[{"id":"c1","workspace_id":"w1","title":"Trip planning"},{"id":"c2","workspace_id":"w1","title":null}]`)
		case r.URL.Path == "/chats" && r.Method == http.MethodPost:
			io.WriteString(w, `{"id":"c3","workspace_id":"w1","title":"New Chat"}`)
		case r.URL.Path == "/messages":
			io.WriteString(w, `[{"id":"m1","role":"user","content":"where to?"},{"id":"m2","role":"assistant","content":"Lisbon."}]`)
		case r.URL.Path == "/chats/stream":
			if streamStatus != http.StatusOK {
				w.WriteHeader(streamStatus)
				io.WriteString(w, `{"detail":"model offline"}`)
				return
			}
			io.WriteString(w, "Hello")
			w.(http.Flusher).Flush()
			io.WriteString(w, " world")
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	testEnv(t, nil)
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "rigrun-chat ") {
		t.Errorf("output = %q", out)
	}
}

func TestChatsAndWorkspacesCommands(t *testing.T) {
	testEnv(t, fakeServer(t, http.StatusOK))

	out, err := execute(t, "", "workspaces")
	if err != nil || !strings.Contains(out, "Personal") || !strings.Contains(out, "w1") {
		t.Errorf("workspaces: %v\n%s", err, out)
	}

	// No --workspace: falls back to the first listed workspace.
	out, err = execute(t, "", "chats", "list")
	if err != nil {
		t.Fatalf("chats list: %v", err)
	}
	if !strings.Contains(out, "Trip planning") || !strings.Contains(out, model.UntitledChat) {
		t.Errorf("chats list output:\n%s", out)
	}

	out, err = execute(t, "", "chats", "new", "--workspace", "w1")
	if err != nil || !strings.Contains(out, "Created") || !strings.Contains(out, "c3") {
		t.Errorf("chats new: %v\n%s", err, out)
	}

	out, err = execute(t, "", "messages", "c1")
	if err != nil || !strings.Contains(out, "where to?") || !strings.Contains(out, "Lisbon.") {
		t.Errorf("messages: %v\n%s", err, out)
	}
}

func TestChatsDeleteRequiresConfirmation(t *testing.T) {
	deleted := false
	testEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deleted = true
		}
		w.WriteHeader(http.StatusNoContent)
	})

	out, err := execute(t, "n\n", "chats", "delete", "c1")
	if err != nil || deleted || !strings.Contains(out, "Cancelled") {
		t.Errorf("declined delete: err=%v deleted=%v\n%s", err, deleted, out)
	}

	_, err = execute(t, "", "chats", "delete", "--yes", "c1")
	if err != nil || !deleted {
		t.Errorf("confirmed delete: err=%v deleted=%v", err, deleted)
	}
}

func TestSendStreamsAndArchives(t *testing.T) {
	testEnv(t, fakeServer(t, http.StatusOK))

	out, err := execute(t, "", "send", "--workspace", "w1", "--chat", "c1", "hello", "there")
	if err != nil {
		t.Fatalf("send: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Hello world") {
		t.Errorf("send output = %q", out)
	}

	out, err = execute(t, "", "archive", "--chat", "c1")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !strings.Contains(out, "hello there") || !strings.Contains(out, "completed") {
		t.Errorf("archive output:\n%s", out)
	}
}

func TestSendReportsStreamError(t *testing.T) {
	testEnv(t, fakeServer(t, http.StatusInternalServerError))

	out, err := execute(t, "", "send", "--workspace", "w1", "--chat", "c1", "hi")
	var shown *reportedError
	if !errors.As(err, &shown) {
		t.Fatalf("err = %v, want reportedError", err)
	}
	if !strings.Contains(out, "Error: model offline") {
		t.Errorf("output = %q", out)
	}
}

func TestSendWithoutToken(t *testing.T) {
	testEnv(t, nil)
	t.Setenv("RIGCHAT_BASE_URL", "http://127.0.0.1:1")

	_, err := execute(t, "", "send", "--workspace", "w1", "--chat", "c1", "hi")
	if err == nil {
		t.Fatal("expected an error without a token")
	}
	if !strings.Contains(errorMessage(err), "token set") {
		t.Errorf("errorMessage = %q", errorMessage(err))
	}
}

func TestTokenCommands(t *testing.T) {
	testEnv(t, nil)

	out, err := execute(t, "", "token", "status")
	if err != nil || !strings.Contains(out, "none") {
		t.Errorf("status without token: %v\n%s", err, out)
	}

	if _, err := execute(t, "secret-token-value\n", "token", "set"); err != nil {
		t.Fatalf("token set: %v", err)
	}

	out, err = execute(t, "", "token", "status")
	if err != nil || !strings.Contains(out, "file") || !strings.Contains(out, "secr...alue") {
		t.Errorf("status with token: %v\n%s", err, out)
	}

	if _, err := execute(t, "", "token", "clear"); err != nil {
		t.Fatalf("token clear: %v", err)
	}
	out, _ = execute(t, "", "token", "status")
	if !strings.Contains(out, "none") {
		t.Errorf("status after clear:\n%s", out)
	}
}

func TestConfigCommands(t *testing.T) {
	testEnv(t, nil)
	t.Setenv("RIGCHAT_BASE_URL", "http://chat.internal:9000")

	out, err := execute(t, "", "config", "get", "server.base_url")
	if err != nil || strings.TrimSpace(out) != "http://chat.internal:9000" {
		t.Errorf("config get: %v %q", err, out)
	}

	out, err = execute(t, "", "config", "init")
	if err != nil || !strings.Contains(out, "config.toml") {
		t.Errorf("config init: %v %q", err, out)
	}
	if _, err := execute(t, "", "config", "init"); err == nil {
		t.Error("second config init should refuse to overwrite")
	}
	if _, err := execute(t, "", "config", "init", "--force"); err != nil {
		t.Errorf("config init --force: %v", err)
	}

	out, err = execute(t, "", "config", "show")
	if err != nil || !strings.Contains(out, `"base_url"`) {
		t.Errorf("config show: %v\n%s", err, out)
	}
}

func TestExportCommand(t *testing.T) {
	testEnv(t, fakeServer(t, http.StatusOK))

	out, err := execute(t, "", "export", "--workspace", "w1", "--stdout", "c1")
	if err != nil {
		t.Fatalf("export --stdout: %v", err)
	}
	for _, want := range []string{"title: Trip planning", "# Trip planning", "where to?", "Lisbon."} {
		if !strings.Contains(out, want) {
			t.Errorf("export output missing %q:\n%s", want, out)
		}
	}

	dir := t.TempDir()
	out, err = execute(t, "", "export", "--workspace", "w1", "--format", "json", "--output", dir, "c1")
	if err != nil {
		t.Fatalf("export json: %v", err)
	}
	if !strings.Contains(out, dir) || !strings.Contains(out, ".json") {
		t.Errorf("export output = %q", out)
	}
}
