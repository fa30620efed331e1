// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Stream is an open streaming response. The caller must close Body.
type Stream struct {
	Body        io.ReadCloser
	Status      int
	ContentType string
	RequestID   string
}

// Charset returns the charset declared in Content-Type, or "" if none.
func (s *Stream) Charset() string {
	if s.ContentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(s.ContentType)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["charset"])
}

// OpenStream POSTs body to path and returns the response once headers
// arrive. The streaming client has no timeout; cancel ctx to abort.
//
// A 401 expires the credential and returns *AuthError. Any other non-2xx, or
// a status that cannot carry a body, returns *StreamError with the detail
// text. A network failure returns *TransportError.
func (c *Client) OpenStream(ctx context.Context, path string, body any) (*Stream, error) {
	req, requestID, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/plain, */*")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.send(c.streamClient, req, requestID)
	if err != nil {
		return nil, &TransportError{Method: http.MethodPost, Path: req.URL.Path, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		data := readLimited(resp.Body, maxErrorBodySize)
		resp.Body.Close()
		return nil, c.expire(req, resp.StatusCode, data)

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		data := readLimited(resp.Body, maxErrorBodySize)
		resp.Body.Close()
		return nil, &StreamError{Status: resp.StatusCode, Message: errorDetail(resp.StatusCode, data)}

	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusResetContent:
		resp.Body.Close()
		return nil, &StreamError{Status: resp.StatusCode, Message: "No response body"}
	}

	c.logger.Debug("stream opened", "path", req.URL.Path, "request_id", requestID,
		"content_type", resp.Header.Get("Content-Type"))

	return &Stream{
		Body:        resp.Body,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		RequestID:   requestID,
	}, nil
}
