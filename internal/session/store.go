// ABOUTME: Durable session state: continuation tokens plus active thread pointers
// ABOUTME: Whole-state JSON persistence with atomic replace and fail-soft loading

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// ErrPersist marks a failed disk write. In-memory state stays authoritative
// for the running process; callers may surface a warning but must not treat
// the operation itself as failed.
var ErrPersist = errors.New("session state not persisted")

// ErrNotFound reports a switch to a session name with no stored record.
var ErrNotFound = errors.New("session not found")

// Store owns all persisted session state for the process: the continuation
// token map and the per-chat active thread pointers. Every read-modify-persist
// sequence runs under one writer lock, held only around the map change and
// the file write, never across an external call.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger

	tokens map[string]string // key string form -> continuation token
	active map[int64]string  // chat id -> active session name
}

// fileState is the on-disk shape: one JSON document, two maps. Chat ids are
// string keys because JSON object keys are strings.
type fileState struct {
	Sessions map[string]string `json:"sessions"`
	Active   map[string]string `json:"active"`
}

// Open loads session state from path. A missing, unreadable, or malformed
// file is not fatal: the store starts with a clean slate and logs what
// happened, so a damaged file never prevents startup.
func Open(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:   path,
		logger: logger.With("component", "session"),
		tokens: make(map[string]string),
		active: make(map[int64]string),
	}
	s.load()
	return s
}

// load reads the backing file into memory, tolerating partial documents:
// a hand-edited file missing either map still loads the other.
func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("could not read session file, starting fresh", "path", s.path, "error", err)
		}
		return
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("malformed session file, starting fresh", "path", s.path, "error", err)
		return
	}

	for key, token := range state.Sessions {
		s.tokens[key] = token
	}
	for chatStr, name := range state.Active {
		chatID, err := strconv.ParseInt(chatStr, 10, 64)
		if err != nil {
			s.logger.Warn("skipping active pointer with bad chat id", "chat", chatStr)
			continue
		}
		s.active[chatID] = name
	}

	s.logger.Info("loaded session state", "path", s.path, "sessions", len(s.tokens), "active_pointers", len(s.active))
}

// Flush writes the current state to disk, typically on shutdown.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// flushLocked marshals both maps into a single document and atomically
// replaces the backing file (write to a temp file, then rename), so a
// reader never observes the two maps out of step. Must be called with
// mu held.
func (s *Store) flushLocked() error {
	state := fileState{
		Sessions: s.tokens,
		Active:   make(map[string]string, len(s.active)),
	}
	for chatID, name := range s.active {
		state.Active[strconv.FormatInt(chatID, 10)] = name
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding: %v", ErrPersist, err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}
