// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/transport"
)

type staticCreds struct{ expired int }

func (s *staticCreds) Token() (string, error) { return "tok", nil }
func (s *staticCreds) Expire(string)          { s.expired++ }

func newTestDirectory(t *testing.T, handler http.HandlerFunc) *Directory {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(transport.New(server.URL, &staticCreds{}), nil)
}

func TestListChats(t *testing.T) {
	d := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/chats" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("workspace_id"); got != "w 1" {
			t.Errorf("workspace_id = %q", got)
		}
		io.WriteString(w, `[{"id":"c2","workspace_id":"w 1","title":"Newer","created_at":"2024-05-02T00:00:00Z"},
		                    {"id":"c1","workspace_id":"w 1","title":null,"created_at":"2024-05-01T00:00:00Z"}]`)
	})

	chats, err := d.ListChats(context.Background(), "w 1")
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(chats) != 2 || chats[0].ID != "c2" || chats[1].DisplayTitle() != model.UntitledChat {
		t.Errorf("chats = %+v", chats)
	}
}

func TestListChats_EmptyWorkspace(t *testing.T) {
	d := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	})
	chats, err := d.ListChats(context.Background(), "w1")
	if err != nil || chats == nil || len(chats) != 0 {
		t.Errorf("chats = %#v, err = %v", chats, err)
	}
}

func TestListChats_Errors(t *testing.T) {
	d := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	if _, err := d.ListChats(context.Background(), "w1"); !transport.IsAuth(err) {
		t.Errorf("err = %v, want auth error", err)
	}
	if _, err := d.ListChats(context.Background(), " "); !errors.Is(err, ErrMissingID) {
		t.Errorf("blank workspace: %v", err)
	}
}

func TestCreateChat(t *testing.T) {
	d := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chats" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var req createChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.WorkspaceID != "w1" || req.Title != "New Chat" {
			t.Errorf("request = %+v", req)
		}
		io.WriteString(w, `{"id":"c9","workspace_id":"w1","title":"New Chat","created_at":"2024-05-03T00:00:00"}`)
	})

	chat, err := d.CreateChat(context.Background(), "w1", "New Chat")
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if chat.ID != "c9" || chat.Title != "New Chat" {
		t.Errorf("chat = %+v", chat)
	}
}

func TestDeleteAndClear(t *testing.T) {
	var calls []string
	d := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.EscapedPath())
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			io.WriteString(w, `{"status":"success"}`)
		}
	})

	if err := d.DeleteChat(context.Background(), "c/1"); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}
	if err := d.ClearChatMessages(context.Background(), "c2"); err != nil {
		t.Fatalf("ClearChatMessages: %v", err)
	}

	want := []string{"DELETE /chats/c%2F1", "POST /chats/c2/clear"}
	if len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestLoadMessages(t *testing.T) {
	d := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" || r.URL.Query().Get("chat_id") != "c1" {
			t.Errorf("%s?%s", r.URL.Path, r.URL.RawQuery)
		}
		io.WriteString(w, `[{"id":"m1","chat_id":"c1","role":"user","content":"hi","created_at":"2024-05-01T10:00:00"},
		                    {"id":"m2","chat_id":"c1","role":"assistant","content":"hello","created_at":"2024-05-01T10:00:01"}]`)
	})

	msgs, err := d.LoadMessages(context.Background(), "c1")
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Content != "hello" {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestLoadMessages_ServerError(t *testing.T) {
	d := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"Chat not found"}`)
	})
	_, err := d.LoadMessages(context.Background(), "gone")
	var te *transport.TransportError
	if !errors.As(err, &te) || te.Status != 404 || transport.Detail(err) != "Chat not found" {
		t.Errorf("err = %v", err)
	}
}

func TestListWorkspaces(t *testing.T) {
	d := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":"w1","name":"Personal","user_id":"u1","created_at":"2024-01-01T00:00:00Z"}]`)
	})
	ws, err := d.ListWorkspaces(context.Background())
	if err != nil || len(ws) != 1 || ws[0].Name != "Personal" {
		t.Errorf("ws = %+v, err = %v", ws, err)
	}
}
