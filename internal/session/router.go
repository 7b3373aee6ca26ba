// ABOUTME: Session routing: resolves the active key per chat and runs lifecycle ops
// ABOUTME: Reset, named-session creation, switching, and read-only enumeration

package session

import (
	"fmt"
	"sort"
	"strings"
)

// Summary is a read-only view of one chat's sessions for display.
type Summary struct {
	Default string            // token for the unnamed thread, "" if none
	Named   map[string]string // thread name -> token
	Active  string            // active thread name, "" means default
}

// ResolveKey returns the key unqualified messages route to: the named key
// when the chat has an active pointer, else the default key.
func (s *Store) ResolveKey(chatID int64) Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(chatID)
}

func (s *Store) resolveLocked(chatID int64) Key {
	if name, ok := s.active[chatID]; ok {
		return NamedKey(chatID, name)
	}
	return DefaultKey(chatID)
}

// Token returns the stored continuation token for a key. Absence means the
// next exchange starts a fresh backend conversation.
func (s *Store) Token(key Key) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[key.String()]
	return token, ok
}

// RecordExchange stores the continuation token returned by a completed
// exchange and persists immediately. An empty token is a no-op: the backend
// declining continuity never erases a stored token. A non-nil error wraps
// ErrPersist and means memory was updated but the disk write failed.
func (s *Store) RecordExchange(key Key, token string) error {
	if token == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key.String()] = token
	return s.flushLocked()
}

// Reset deletes the record for the chat's currently-resolved key and clears
// the active pointer, then persists. existed reports whether a record was
// actually removed; the pointer is cleared either way.
func (s *Store) Reset(chatID int64) (existed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.resolveLocked(chatID).String()
	_, existed = s.tokens[key]
	delete(s.tokens, key)
	delete(s.active, chatID)
	return existed, s.flushLocked()
}

// CreateNamed validates the name, sets the chat's active pointer, and
// persists. The first exchange under the returned key is the caller's job;
// an existing token for the key is honored rather than discarded, so
// "create" repoints the chat but does not guarantee a blank slate.
func (s *Store) CreateNamed(chatID int64, name string) (Key, error) {
	if err := ValidateName(name); err != nil {
		return Key{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[chatID] = name
	return NamedKey(chatID, name), s.flushLocked()
}

// Switch repoints the chat's unqualified messages. The reserved name
// "default" clears the pointer; any other name requires an existing record
// for that key and fails with ErrNotFound otherwise.
func (s *Store) Switch(chatID int64, name string) (Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == DefaultName {
		delete(s.active, chatID)
		return DefaultKey(chatID), s.flushLocked()
	}

	key := NamedKey(chatID, name)
	if _, ok := s.tokens[key.String()]; !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	s.active[chatID] = name
	return key, s.flushLocked()
}

// List enumerates one chat's sessions without mutating anything.
func (s *Store) List(chatID int64) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		Named:  make(map[string]string),
		Active: s.active[chatID],
	}
	sum.Default = s.tokens[DefaultKey(chatID).String()]

	prefix := DefaultKey(chatID).String() + separator
	for key, token := range s.tokens {
		if strings.HasPrefix(key, prefix) {
			sum.Named[key[len(prefix):]] = token
		}
	}
	return sum
}

// Chats returns every chat id with stored state, sorted. Operator tooling
// only; the relay never needs a cross-chat view.
func (s *Store) Chats() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int64]bool)
	for keyStr := range s.tokens {
		if key, err := ParseKey(keyStr); err == nil {
			seen[key.Chat] = true
		}
	}
	for chatID := range s.active {
		seen[chatID] = true
	}

	chats := make([]int64, 0, len(seen))
	for chatID := range seen {
		chats = append(chats, chatID)
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i] < chats[j] })
	return chats
}

// Drop removes the record for one key, clearing the chat's active pointer
// when it pointed at that key. Operator tooling only.
func (s *Store) Drop(key Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[key.String()]; !ok {
		return false, nil
	}
	delete(s.tokens, key.String())
	if s.active[key.Chat] == key.Name {
		delete(s.active, key.Chat)
	}
	return true, s.flushLocked()
}
