// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeCreds is an in-memory Credentials that records expiries.
type fakeCreds struct {
	mu      sync.Mutex
	token   string
	expired []string
}

func (f *fakeCreds) Token() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == "" {
		return "", errors.New("no access token stored")
	}
	return f.token, nil
}

func (f *fakeCreds) Expire(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.expired = append(f.expired, reason)
}

func (f *fakeCreds) expiries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.expired)
}

// =============================================================================
// JSON REQUEST TESTS
// =============================================================================

func TestDoJSON_SendsHeadersAndDecodes(t *testing.T) {
	var gotAuth, gotCT, gotUA, gotReqID, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCT = r.Header.Get("Content-Type")
		gotUA = r.Header.Get("User-Agent")
		gotReqID = r.Header.Get(RequestIDHeader)
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","title":"New Chat"}`)
	}))
	defer server.Close()

	c := New(server.URL+"/", &fakeCreds{token: "tok"}, WithUserAgent("test-agent"))

	var out struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	err := c.DoJSON(context.Background(), http.MethodPost, "/chats",
		map[string]string{"workspace_id": "w1", "title": "New Chat"}, &out)
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}

	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotCT != "application/json" {
		t.Errorf("Content-Type = %q", gotCT)
	}
	if gotUA != "test-agent" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotReqID == "" {
		t.Error("missing X-Request-ID")
	}
	if !strings.Contains(gotBody, `"workspace_id":"w1"`) {
		t.Errorf("body = %q", gotBody)
	}
	if out.ID != "c1" || out.Title != "New Chat" {
		t.Errorf("decoded = %+v", out)
	}
}

func TestDoJSON_MissingTokenNoNetwork(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	c := New(server.URL, &fakeCreds{})
	err := c.DoJSON(context.Background(), http.MethodGet, "/chats", nil, nil)

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want *AuthError", err)
	}
	if authErr.Status != 0 {
		t.Errorf("Status = %d, want 0", authErr.Status)
	}
	if !IsAuth(err) || !errors.Is(err, ErrUnauthenticated) {
		t.Error("AuthError should unwrap to ErrUnauthenticated")
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times", hits.Load())
	}
}

func TestDoJSON_UnauthorizedExpires(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"detail":"Could not validate credentials"}`)
	}))
	defer server.Close()

	creds := &fakeCreds{token: "stale"}
	c := New(server.URL, creds)
	err := c.DoJSON(context.Background(), http.MethodGet, "/chats?workspace_id=w1", nil, nil)

	if !IsAuth(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
	if got := Detail(err); got != "Could not validate credentials" {
		t.Errorf("Detail = %q", got)
	}
	if creds.expiries() != 1 {
		t.Errorf("expiries = %d, want 1", creds.expiries())
	}
	if hits.Load() != 1 {
		t.Errorf("401 must not be retried, hits = %d", hits.Load())
	}
}

func TestDoJSON_ErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"json string detail", 404, `{"detail":"Chat not found"}`, "Chat not found"},
		{"json structured detail", 422, `{"detail":[{"loc":["body","title"],"msg":"field required"}]}`,
			`[{"loc":["body","title"],"msg":"field required"}]`},
		{"plain text", 500, "  upstream exploded \n", "upstream exploded"},
		{"empty body", 503, "", "API Error: Service Unavailable"},
		{"json without detail", 400, `{"error":"x"}`, `{"error":"x"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer server.Close()

			c := New(server.URL, &fakeCreds{token: "tok"})
			err := c.DoJSON(context.Background(), http.MethodGet, "/messages?chat_id=c1", nil, nil)

			var te *TransportError
			if !errors.As(err, &te) {
				t.Fatalf("err = %v, want *TransportError", err)
			}
			if te.Status != tc.status {
				t.Errorf("Status = %d", te.Status)
			}
			if got := Detail(err); got != tc.want {
				t.Errorf("Detail = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDoJSON_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := New(url, &fakeCreds{token: "tok"})
	err := c.DoJSON(context.Background(), http.MethodGet, "/chats", nil, nil)

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	if te.Status != 0 || te.Err == nil {
		t.Errorf("unexpected TransportError: %+v", te)
	}
	if IsAuth(err) {
		t.Error("network failure is not an auth error")
	}
}

func TestDoJSON_NoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := New(server.URL, &fakeCreds{token: "tok"})
	var out map[string]any
	if err := c.DoJSON(context.Background(), http.MethodDelete, "/chats/c1", nil, &out); err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
}

func TestDoJSON_RateLimitPaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}))
	defer server.Close()

	c := New(server.URL, &fakeCreds{token: "tok"}, WithRateLimit(20, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := c.DoJSON(context.Background(), http.MethodGet, "/workspaces", nil, nil); err != nil {
			t.Fatal(err)
		}
	}
	// Burst of one at 20 rps: the 2nd and 3rd requests each wait ~50ms.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("requests not paced, elapsed %v", elapsed)
	}
}

// =============================================================================
// STREAM TESTS
// =============================================================================

func TestOpenStream_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chats/stream" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
		io.WriteString(w, "hello")
	}))
	defer server.Close()

	c := New(server.URL, &fakeCreds{token: "tok"}, WithTimeout(time.Second))
	s, err := c.OpenStream(context.Background(), "/chats/stream", map[string]string{"chat_id": "c1", "message": "hi"})
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer s.Body.Close()

	if s.Charset() != "iso-8859-1" {
		t.Errorf("Charset = %q", s.Charset())
	}
	if s.RequestID == "" {
		t.Error("missing request id")
	}
	data, _ := io.ReadAll(s.Body)
	if string(data) != "hello" {
		t.Errorf("body = %q", data)
	}
}

func TestOpenStream_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantAuth bool
		want     string
	}{
		{"unauthorized", 401, `{"detail":"Token expired"}`, true, "Token expired"},
		{"server error", 500, `{"detail":"model offline"}`, false, "model offline"},
		{"no content", 204, "", false, "No response body"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer server.Close()

			creds := &fakeCreds{token: "tok"}
			c := New(server.URL, creds)
			_, err := c.OpenStream(context.Background(), "/chats/stream", nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if IsAuth(err) != tc.wantAuth {
				t.Errorf("IsAuth = %v, want %v (err %v)", IsAuth(err), tc.wantAuth, err)
			}
			if !tc.wantAuth {
				var se *StreamError
				if !errors.As(err, &se) {
					t.Fatalf("err = %T, want *StreamError", err)
				}
			}
			if tc.wantAuth && creds.expiries() != 1 {
				t.Errorf("expiries = %d", creds.expiries())
			}
			if got := Detail(err); got != tc.want {
				t.Errorf("Detail = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestOpenStream_NoClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(150 * time.Millisecond)
		io.WriteString(w, "late")
	}))
	defer server.Close()

	c := New(server.URL, &fakeCreds{token: "tok"}, WithTimeout(50*time.Millisecond))
	s, err := c.OpenStream(context.Background(), "/chats/stream", nil)
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	defer s.Body.Close()

	data, err := io.ReadAll(s.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "late" {
		t.Errorf("body = %q", data)
	}
}

func TestErrorStrings(t *testing.T) {
	if got := (&AuthError{Message: "no token"}).Error(); got != "not authenticated: no token" {
		t.Errorf("AuthError = %q", got)
	}
	se := &StreamError{Partial: "abc", Err: io.ErrUnexpectedEOF}
	if !strings.Contains(se.Error(), "3 chars") || !errors.Is(se, io.ErrUnexpectedEOF) {
		t.Errorf("StreamError = %q", se.Error())
	}
	if Detail(nil) != "" {
		t.Error("Detail(nil) should be empty")
	}
	if Detail(errors.New("plain")) != "plain" {
		t.Error("Detail should fall back to Error()")
	}
}
