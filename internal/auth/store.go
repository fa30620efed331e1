// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jeranaias/rigrun-chat/internal/util"
)

// ErrNoToken is returned when no credential is stored.
var ErrNoToken = errors.New("no access token stored")

// TokenStore persists a single bearer token.
// Token returns ErrNoToken when nothing is stored.
type TokenStore interface {
	Token() (string, error)
	SetToken(token string) error
	Clear() error
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore keeps the token in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore returns a store seeded with token (may be empty).
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: strings.TrimSpace(token)}
}

// Token returns the stored token.
func (m *MemoryStore) Token() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return "", ErrNoToken
	}
	return m.token, nil
}

// SetToken replaces the stored token.
func (m *MemoryStore) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token must not be empty")
	}
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

// Clear forgets the token.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps the token in a file. Reads are cached until the file is
// rewritten through this store or, when Watch is running, by another process.
type FileStore struct {
	path string

	mu     sync.Mutex
	token  string
	loaded bool
}

// NewFileStore returns a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the token file location.
func (f *FileStore) Path() string {
	return f.path
}

// Token returns the cached token, reading the file on first use.
func (f *FileStore) Token() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.loaded {
		data, err := os.ReadFile(f.path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			f.token = ""
		case err != nil:
			return "", fmt.Errorf("read token file: %w", err)
		default:
			f.token = strings.TrimSpace(string(data))
		}
		f.loaded = true
	}

	if f.token == "" {
		return "", ErrNoToken
	}
	return f.token, nil
}

// SetToken writes the token.
// SECURITY: The file is replaced atomically with 0600 permissions.
func (f *FileStore) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token must not be empty")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := util.AtomicWriteFile(f.path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	f.token = token
	f.loaded = true
	return nil
}

// Clear removes the token file. A missing file is not an error.
func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	f.token = ""
	f.loaded = true
	return nil
}

// invalidate drops the cache so the next Token call rereads the file.
func (f *FileStore) invalidate() {
	f.mu.Lock()
	f.loaded = false
	f.mu.Unlock()
}
