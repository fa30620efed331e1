// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"strings"

	"github.com/jeranaias/rigrun-chat/internal/model"
	"github.com/jeranaias/rigrun-chat/internal/stream"
)

// Precondition errors. Callers treat them as a no-op, not a failure.
var (
	ErrStreaming     = errors.New("a response is still streaming")
	ErrNoChat        = errors.New("no chat selected")
	ErrEmptyMessage  = errors.New("message is empty")
	ErrNotStreaming  = errors.New("no response is streaming")
	ErrNoPlaceholder = errors.New("last message is not an assistant placeholder")
)

// =============================================================================
// STORE
// =============================================================================

// Store is the mutable session state. Not safe for concurrent use.
type Store struct {
	selected   string
	epoch      uint64
	messages   []model.Message
	streaming  bool
	agentMode  bool
	phase      stream.Phase
	stopMarker string
}

// NewStore creates an empty store. stopMarker is appended to a response the
// user interrupted.
func NewStore(stopMarker string) *Store {
	return &Store{stopMarker: stopMarker}
}

// SelectedChat returns the selected chat id, or "".
func (s *Store) SelectedChat() string { return s.selected }

// Epoch increments on every selection change. Responses tagged with an older
// epoch are stale.
func (s *Store) Epoch() uint64 { return s.epoch }

// Streaming reports whether a response is in flight.
func (s *Store) Streaming() bool { return s.streaming }

// AgentMode reports whether sends use the agent endpoint.
func (s *Store) AgentMode() bool { return s.agentMode }

// Phase returns the phase of the latest stream.
func (s *Store) Phase() stream.Phase { return s.phase }

// Len returns the number of messages.
func (s *Store) Len() int { return len(s.messages) }

// SelectChat changes the selection. Changing it, including to "", clears the
// message list, ends any stream as cancelled and bumps the epoch. Returns
// false if id is already selected.
func (s *Store) SelectChat(id string) bool {
	if id == s.selected {
		return false
	}
	if s.streaming {
		s.finish(stream.PhaseCancelled)
	}
	s.selected = id
	s.epoch++
	s.messages = nil
	return true
}

// ReplaceMessages replaces the message list wholesale.
func (s *Store) ReplaceMessages(msgs []model.Message) {
	s.messages = model.CloneMessages(msgs)
	if s.messages == nil {
		s.messages = []model.Message{}
	}
}

// ClearMessages empties the message list.
func (s *Store) ClearMessages() {
	s.messages = []model.Message{}
}

// SetAgentMode toggles the agent endpoint for subsequent sends.
func (s *Store) SetAgentMode(on bool) {
	s.agentMode = on
}

// AppendOptimisticExchange appends the user message and an empty assistant
// placeholder in one step and marks the session streaming. It refuses while
// streaming, without a selected chat, or for blank text.
func (s *Store) AppendOptimisticExchange(userText string) error {
	switch {
	case s.streaming:
		return ErrStreaming
	case s.selected == "":
		return ErrNoChat
	case strings.TrimSpace(userText) == "":
		return ErrEmptyMessage
	}

	s.messages = append(s.messages, model.NewUserMessage(userText), model.NewPlaceholder())
	s.streaming = true
	s.phase = stream.PhaseSending
	return nil
}

// BeginStreaming records that response headers arrived.
func (s *Store) BeginStreaming() error {
	if !s.streaming {
		return ErrNotStreaming
	}
	next, err := s.phase.Next(stream.PhaseStreaming)
	if err != nil {
		return err
	}
	s.phase = next
	return nil
}

// UpdateLastAssistantContent replaces the placeholder's content with text,
// the full response so far.
func (s *Store) UpdateLastAssistantContent(text string) error {
	last, err := s.placeholder()
	if err != nil {
		return err
	}
	last.Content = text
	return nil
}

// FinalizeStream ends the stream. When stoppedByUser the stop marker is
// appended to whatever content arrived.
func (s *Store) FinalizeStream(stoppedByUser bool) error {
	last, err := s.placeholder()
	if err != nil {
		return err
	}

	target := stream.PhaseCompleted
	if stoppedByUser {
		target = stream.PhaseCancelled
		last.Content += s.stopMarker
	}
	s.finish(target)
	return nil
}

// FailStream ends the stream with an error expressed as content: the
// placeholder becomes "Error: <msg>", or "<partial>\n\nError: <msg>" when
// some content arrived.
func (s *Store) FailStream(msg string) error {
	last, err := s.placeholder()
	if err != nil {
		return err
	}

	if last.Content == "" {
		last.Content = "Error: " + msg
	} else {
		last.Content = last.Content + "\n\nError: " + msg
	}
	s.finish(stream.PhaseErrored)
	return nil
}

// AbortStream ends the stream leaving the placeholder untouched. Used for
// authentication failures, which are reported through the expiry hook.
func (s *Store) AbortStream() error {
	if !s.streaming {
		return ErrNotStreaming
	}
	s.finish(stream.PhaseErrored)
	return nil
}

// finish moves to a terminal phase and clears the streaming flag. Completion
// from sending (no Opened seen) passes through streaming.
func (s *Store) finish(target stream.Phase) {
	if s.phase == stream.PhaseSending && target == stream.PhaseCompleted {
		s.phase = stream.PhaseStreaming
	}
	if next, err := s.phase.Next(target); err == nil {
		s.phase = next
	} else {
		s.phase = target
	}
	s.streaming = false
}

// placeholder returns the open assistant placeholder.
func (s *Store) placeholder() (*model.Message, error) {
	if !s.streaming {
		return nil, ErrNotStreaming
	}
	if len(s.messages) == 0 || s.messages[len(s.messages)-1].Role != model.RoleAssistant {
		return nil, ErrNoPlaceholder
	}
	return &s.messages[len(s.messages)-1], nil
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a read-only copy of the store.
type Snapshot struct {
	SelectedChat string
	Epoch        uint64
	Messages     []model.Message
	Streaming    bool
	AgentMode    bool
	Phase        stream.Phase
}

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		SelectedChat: s.selected,
		Epoch:        s.epoch,
		Messages:     model.CloneMessages(s.messages),
		Streaming:    s.streaming,
		AgentMode:    s.agentMode,
		Phase:        s.phase,
	}
}

// LastMessage returns the last message, if any.
func (sn Snapshot) LastMessage() (model.Message, bool) {
	if len(sn.Messages) == 0 {
		return model.Message{}, false
	}
	return sn.Messages[len(sn.Messages)-1], true
}
