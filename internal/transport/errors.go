// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthenticated is the sentinel every *AuthError unwraps to.
var ErrUnauthenticated = errors.New("not authenticated")

// AuthError reports a missing credential or an HTTP 401.
// Status is zero when no request was sent.
type AuthError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%v: %s", ErrUnauthenticated, e.Message)
	}
	return fmt.Sprintf("authentication failed (HTTP %d): %s", e.Status, e.Message)
}

// Unwrap returns ErrUnauthenticated.
func (e *AuthError) Unwrap() error {
	return ErrUnauthenticated
}

// TransportError reports a network failure or a non-2xx, non-401 response
// from a JSON endpoint.
type TransportError struct {
	Method  string
	Path    string
	Status  int    // zero for network failures
	Message string // server-provided detail
	Err     error  // underlying cause for network and decode failures
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// StreamError reports a failed streaming request: a non-2xx response, a
// response without a body, or a read failure after the stream opened.
// Partial holds any content decoded before the failure.
type StreamError struct {
	Status  int
	Message string
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("stream failed (HTTP %d): %s", e.Status, e.Message)
	case e.Partial != "":
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.cause())
	default:
		return fmt.Sprintf("stream error: %v", e.cause())
	}
}

func (e *StreamError) cause() any {
	if e.Err != nil {
		return e.Err
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether err is, or wraps, an authentication failure.
func IsAuth(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// Detail returns the user-facing text for err: the server's detail message
// when one was received, otherwise the error text.
func Detail(err error) string {
	if err == nil {
		return ""
	}

	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		if streamErr.Message != "" {
			return streamErr.Message
		}
		if streamErr.Err != nil {
			return streamErr.Err.Error()
		}
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		if transportErr.Message != "" {
			return transportErr.Message
		}
		if transportErr.Err != nil {
			return transportErr.Err.Error()
		}
	}
	return err.Error()
}

// errorDetail extracts a message from an error response body: the JSON
// "detail" field when present (strings verbatim, other JSON compacted), then
// the trimmed text body, then a message built from the status text.
func errorDetail(status int, body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 && string(payload.Detail) != "null" {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		} else {
			var compact bytes.Buffer
			if json.Compact(&compact, payload.Detail) == nil {
				return compact.String()
			}
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	if statusText := http.StatusText(status); statusText != "" {
		return "API Error: " + statusText
	}
	return fmt.Sprintf("API Error: HTTP %d", status)
}
