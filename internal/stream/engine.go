// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-chat/internal/config"
	"github.com/jeranaias/rigrun-chat/internal/transport"
)

// ErrStopped is the cancellation cause for a user-requested stop.
var ErrStopped = errors.New("stopped by user")

const (
	// ChatEndpoint streams a plain chat response.
	ChatEndpoint = "/chats/stream"
	// AgentEndpoint streams an agent response.
	AgentEndpoint = "/chats/agent/stream"

	// readChunkSize bounds a single body read.
	readChunkSize = 4096
	// eventBuffer decouples body reads from a slow consumer.
	eventBuffer = 64
)

// Endpoint returns the streaming path for the mode. The request body is the
// same for both.
func Endpoint(agentMode bool) string {
	if agentMode {
		return AgentEndpoint
	}
	return ChatEndpoint
}

// Opener opens a streaming response. *transport.Client satisfies it.
type Opener interface {
	OpenStream(ctx context.Context, path string, body any) (*transport.Stream, error)
}

// Request describes one send.
type Request struct {
	ChatID    string
	Message   string
	AgentMode bool
}

// requestBody is the wire shape shared by both endpoints.
type requestBody struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

// Engine starts streaming runs.
type Engine struct {
	opener Opener
	logger *slog.Logger
}

// NewEngine creates an engine over opener.
func NewEngine(opener Opener, logger *slog.Logger) *Engine {
	return &Engine{opener: opener, logger: config.OrDiscard(logger)}
}

// Run is a single, non-restartable stream.
type Run struct {
	req    Request
	events chan Event
}

// Request returns the request this run was started with.
func (r *Run) Request() Request {
	return r.req
}

// Events yields the run's events and is closed after the terminal one.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Start begins streaming req in the background. Preconditions (non-empty
// message, a selected chat, no active stream) are the caller's concern.
func (e *Engine) Start(ctx context.Context, req Request) *Run {
	run := &Run{req: req, events: make(chan Event, eventBuffer)}
	go e.run(ctx, run)
	return run
}

// stopped reports whether ctx was cancelled by a user stop.
func stopped(ctx context.Context) bool {
	return ctx.Err() != nil && errors.Is(context.Cause(ctx), ErrStopped)
}

func (e *Engine) run(ctx context.Context, run *Run) {
	defer close(run.events)

	req := run.req
	start := time.Now()
	log := e.logger.With("chat_id", req.ChatID, "agent", req.AgentMode)

	s, err := e.opener.OpenStream(ctx, Endpoint(req.AgentMode), requestBody{ChatID: req.ChatID, Message: req.Message})
	if err != nil {
		if stopped(ctx) {
			log.Debug("stream stopped before open")
			run.events <- Event{Kind: EventCancelled}
			return
		}
		log.Warn("stream open failed", "error", err)
		run.events <- Event{Kind: EventFailed, Err: err}
		return
	}
	defer s.Body.Close()

	// Closing the body unblocks a pending Read when the run is cancelled.
	stopClose := context.AfterFunc(ctx, func() { s.Body.Close() })
	defer stopClose()

	id := s.RequestID
	run.events <- Event{Kind: EventOpened, RequestID: id}

	dec, derr := NewDecoder(s.Charset())
	if derr != nil {
		log.Warn("falling back to UTF-8", "error", derr)
	}

	var acc strings.Builder
	publish := func(text string) {
		if text == "" {
			return
		}
		acc.WriteString(text)
		run.events <- Event{Kind: EventDelta, Delta: text, Content: acc.String(), RequestID: id}
	}

	buf := make([]byte, readChunkSize)
	for {
		n, rerr := s.Body.Read(buf)

		if ctx.Err() != nil {
			publish(dec.Flush())
			if stopped(ctx) {
				log.Info("stream stopped", "request_id", id, "chars", acc.Len(), "duration", time.Since(start))
				run.events <- Event{Kind: EventCancelled, Content: acc.String(), RequestID: id}
				return
			}
			log.Warn("stream aborted", "request_id", id, "error", context.Cause(ctx))
			run.events <- Event{Kind: EventFailed, Content: acc.String(), RequestID: id,
				Err: &transport.StreamError{Partial: acc.String(), Err: context.Cause(ctx)}}
			return
		}

		if n > 0 {
			publish(dec.Decode(buf[:n]))
		}

		switch {
		case rerr == nil:
			continue
		case errors.Is(rerr, io.EOF):
			publish(dec.Flush())
			log.Debug("stream completed", "request_id", id, "chars", acc.Len(), "duration", time.Since(start))
			run.events <- Event{Kind: EventCompleted, Content: acc.String(), RequestID: id}
			return
		default:
			publish(dec.Flush())
			log.Warn("stream read failed", "request_id", id, "error", rerr)
			run.events <- Event{Kind: EventFailed, Content: acc.String(), RequestID: id,
				Err: &transport.StreamError{Partial: acc.String(), Err: rerr}}
			return
		}
	}
}
