// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"sync"
)

// ErrClosed is returned when the loop or controller has shut down.
var ErrClosed = errors.New("chat session closed")

// loopQueue bounds the number of posted tasks waiting to run.
const loopQueue = 256

// Loop runs posted tasks one at a time, in order, on a single goroutine.
// A task must not Call back into its own loop.
type Loop struct {
	tasks  chan func()
	quit   chan struct{}
	exited chan struct{}
	once   sync.Once
}

// NewLoop starts a loop.
func NewLoop() *Loop {
	l := &Loop{
		tasks:  make(chan func(), loopQueue),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.exited)
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.quit:
			return
		}
	}
}

// Post queues fn without waiting for it. It returns false once the loop is
// closed.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Call runs fn on the loop and waits for it to return.
func (l *Loop) Call(fn func()) error {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-l.exited:
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Close stops the loop after the running task, if any. Queued tasks are
// dropped. Safe to call more than once.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.quit) })
	<-l.exited
}
