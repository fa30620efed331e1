// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned by Phase.Next for transitions the state
// machine does not allow.
var ErrIllegalTransition = errors.New("illegal phase transition")

// Phase is the lifecycle state of one in-flight stream.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSending
	PhaseStreaming
	PhaseCompleted
	PhaseCancelled
	PhaseErrored
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSending:
		return "sending"
	case PhaseStreaming:
		return "streaming"
	case PhaseCompleted:
		return "completed"
	case PhaseCancelled:
		return "cancelled"
	case PhaseErrored:
		return "errored"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether p ends a stream.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled || p == PhaseErrored
}

// Active reports whether a request is in flight.
func (p Phase) Active() bool {
	return p == PhaseSending || p == PhaseStreaming
}

// CanTransition reports whether p may move to next.
//
//	idle -> sending -> streaming -> {completed | cancelled | errored}
//	sending -> {cancelled | errored}
func (p Phase) CanTransition(next Phase) bool {
	switch p {
	case PhaseIdle:
		return next == PhaseSending
	case PhaseSending:
		return next == PhaseStreaming || next == PhaseCancelled || next == PhaseErrored
	case PhaseStreaming:
		return next == PhaseCompleted || next == PhaseCancelled || next == PhaseErrored
	default:
		return false
	}
}

// Next returns next if the transition is legal, otherwise p and an error.
func (p Phase) Next(next Phase) (Phase, error) {
	if !p.CanTransition(next) {
		return p, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, p, next)
	}
	return next, nil
}
