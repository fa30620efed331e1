// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/jeranaias/rigrun-chat/internal/config"
)

// Session wraps a TokenStore and notifies listeners when the backend rejects
// the credential. Listeners fire once per expiry: repeated Expire calls before
// a new token is set are ignored.
type Session struct {
	store  TokenStore
	logger *slog.Logger

	mu        sync.Mutex
	expired   bool
	nextID    int
	listeners map[int]func(reason string)
}

// NewSession creates a session over store.
func NewSession(store TokenStore, logger *slog.Logger) *Session {
	return &Session{
		store:     store,
		logger:    config.OrDiscard(logger),
		listeners: make(map[int]func(string)),
	}
}

// Token returns the current credential, or ErrNoToken. Expire clears the
// store, so a token found afterwards was set elsewhere and re-arms the session.
func (s *Session) Token() (string, error) {
	token, err := s.store.Token()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.expired = false
	s.mu.Unlock()
	return token, nil
}

// SetToken stores a new credential and re-arms expiry notifications.
func (s *Session) SetToken(token string) error {
	if err := s.store.SetToken(token); err != nil {
		return err
	}
	s.mu.Lock()
	s.expired = false
	s.mu.Unlock()
	return nil
}

// OnExpired registers fn and returns a function that unregisters it.
func (s *Session) OnExpired(fn func(reason string)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Expire clears the stored credential and notifies listeners.
// Listeners run synchronously on the caller's goroutine, outside the lock.
func (s *Session) Expire(reason string) {
	s.mu.Lock()
	if s.expired {
		s.mu.Unlock()
		return
	}
	s.expired = true
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	if err := s.store.Clear(); err != nil && !errors.Is(err, ErrNoToken) {
		s.logger.Warn("failed to clear expired token", "error", err)
	}
	s.logger.Info("session expired", "reason", reason)

	for _, fn := range fns {
		fn(reason)
	}
}

// Expired reports whether the session has expired since the last SetToken.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}
