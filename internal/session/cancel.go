// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"

	"github.com/jeranaias/rigrun-chat/internal/stream"
)

// =============================================================================
// CANCELLATION TOKENS
// =============================================================================

// Token is the cancellation handle for one send. Its context is passed to
// the stream engine.
type Token struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// Context returns the token's context.
func (t *Token) Context() context.Context {
	return t.ctx
}

// Stopped reports whether the token was ended by a user stop.
func (t *Token) Stopped() bool {
	return t.ctx.Err() != nil && errors.Is(context.Cause(t.ctx), stream.ErrStopped)
}

// Canceller tracks the single active token. Stop may be called from any
// goroutine, e.g. a signal handler.
type Canceller struct {
	mu     sync.Mutex
	active *Token
	nextID uint64
}

// NewCanceller creates a canceller with no active token.
func NewCanceller() *Canceller {
	return &Canceller{}
}

// Issue creates the token for a new send, derived from parent. Any previous
// token is released first so its context never leaks.
func (c *Canceller) Issue(parent context.Context) *Token {
	ctx, cancel := context.WithCancelCause(parent)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		c.active.cancel(context.Canceled)
	}
	c.nextID++
	c.active = &Token{id: c.nextID, ctx: ctx, cancel: cancel}
	return c.active
}

// Stop cancels the active token with cause stream.ErrStopped. It returns
// false, doing nothing, when there is no active token.
func (c *Canceller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.ctx.Err() != nil {
		return false
	}
	c.active.cancel(stream.ErrStopped)
	c.active = nil
	return true
}

// Release ends t after its stream finished, without marking it stopped.
// Safe to call more than once.
func (c *Canceller) Release(t *Token) {
	if t == nil {
		return
	}
	t.cancel(context.Canceled)

	c.mu.Lock()
	if c.active == t {
		c.active = nil
	}
	c.mu.Unlock()
}

// Active reports whether a token is outstanding.
func (c *Canceller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}
