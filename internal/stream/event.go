// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

// EventKind identifies a stream event.
type EventKind int

const (
	EventOpened EventKind = iota + 1
	EventDelta
	EventCompleted
	EventCancelled
	EventFailed
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventDelta:
		return "delta"
	case EventCompleted:
		return "completed"
	case EventCancelled:
		return "cancelled"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is one step of a run.
//
// Content always holds the full text accumulated so far; consumers replace
// their copy with it rather than appending Delta.
type Event struct {
	Kind      EventKind
	Delta     string
	Content   string
	Err       error
	RequestID string
}

// Terminal reports whether this is the last event of a run.
func (e Event) Terminal() bool {
	return e.Kind == EventCompleted || e.Kind == EventCancelled || e.Kind == EventFailed
}

// Phase returns the phase this event moves the stream into.
func (e Event) Phase() Phase {
	switch e.Kind {
	case EventOpened, EventDelta:
		return PhaseStreaming
	case EventCompleted:
		return PhaseCompleted
	case EventCancelled:
		return PhaseCancelled
	case EventFailed:
		return PhaseErrored
	default:
		return PhaseIdle
	}
}
