// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/rigrun-chat/internal/stream"
)

// updateBuffer is the number of undelivered events an Exchange holds.
const updateBuffer = 64

// Result is how an exchange ended.
type Result struct {
	Phase     stream.Phase // completed, cancelled or errored
	Text      string       // response text as streamed, without marker or error
	Err       error
	RequestID string
	Duration  time.Duration
}

// Stopped reports whether the user stopped the response.
func (r Result) Stopped() bool {
	return r.Phase == stream.PhaseCancelled
}

// Exchange is one in-flight send.
//
// Updates delivers the run's events as they are applied. A consumer that
// falls behind misses intermediate deltas; every event carries the full
// content so far, and Wait always returns the final result.
type Exchange struct {
	ChatID    string
	UserText  string
	AgentMode bool
	StartedAt time.Time

	updates chan stream.Event
	done    chan struct{}
	result  Result
}

func newExchange(chatID, text string, agent bool) *Exchange {
	return &Exchange{
		ChatID:    chatID,
		UserText:  text,
		AgentMode: agent,
		StartedAt: time.Now(),
		updates:   make(chan stream.Event, updateBuffer),
		done:      make(chan struct{}),
	}
}

// Updates yields events and is closed when the run ends.
func (e *Exchange) Updates() <-chan stream.Event {
	return e.updates
}

// Done is closed once the exchange is finalized.
func (e *Exchange) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the exchange is finalized and returns its result.
func (e *Exchange) Wait() Result {
	<-e.done
	return e.result
}

func (e *Exchange) publish(ev stream.Event) {
	select {
	case e.updates <- ev:
	default:
	}
}

func (e *Exchange) finish(r Result) {
	e.result = r
	close(e.done)
}
