// Package history keeps the client-side record of past proofreading runs.
// Sessions are persisted through an injected [Store]; the server pipeline
// never touches it.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists the full session list. Implementations must be safe for
// concurrent use.
type Store interface {
	// Save replaces the stored sessions with sessions.
	Save(sessions []Session) error

	// Load returns the stored sessions, newest first. A missing store yields
	// an empty list.
	Load() ([]Session, error)
}

// Compile-time interface checks.
var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// FileStore persists sessions as one JSON document in a local file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore backed by path. The file and its parent
// directory are created on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Save writes sessions atomically by renaming a temp file over the target.
func (s *FileStore) Save(sessions []Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessions == nil {
		sessions = []Session{}
	}
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("history: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("history: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("history: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("history: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("history: replace %q: %w", s.path, err)
	}
	return nil
}

// Load reads the stored sessions. A missing file yields an empty list; a
// corrupt file is reported as an error.
func (s *FileStore) Load() ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: read: %w", err)
	}
	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("history: decode %q: %w", s.path, err)
	}
	if sessions == nil {
		sessions = []Session{}
	}
	return sessions, nil
}

// MemoryStore keeps sessions in memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions []Session
}

// Save implements [Store].
func (m *MemoryStore) Save(sessions []Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append([]Session(nil), sessions...)
	return nil
}

// Load implements [Store].
func (m *MemoryStore) Load() ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Session{}, m.sessions...), nil
}
