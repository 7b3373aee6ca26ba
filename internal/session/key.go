// ABOUTME: Tagged session key identifying one conversation thread in one chat
// ABOUTME: The colon-joined string form exists only at the persistence boundary

package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// separator joins chat id and session name in the persisted key form.
const separator = ":"

// DefaultName is the reserved name that refers to a chat's unnamed thread.
const DefaultName = "default"

// ErrBadName reports a session name that is empty, reserved, or contains
// the separator character.
var ErrBadName = errors.New("invalid session name")

// Key identifies one conversation thread: a chat plus an optional thread
// name. An empty Name means the chat's default (unnamed) thread.
type Key struct {
	Chat int64
	Name string
}

// DefaultKey returns the unnamed key for a chat.
func DefaultKey(chatID int64) Key {
	return Key{Chat: chatID}
}

// NamedKey returns the key for a named thread. The name is not validated
// here; callers creating sessions from user input use ValidateName first.
func NamedKey(chatID int64, name string) Key {
	return Key{Chat: chatID, Name: name}
}

// Named reports whether the key targets a named thread.
func (k Key) Named() bool {
	return k.Name != ""
}

// String renders the canonical persisted form: "100" for the default
// thread, "100:debug" for a named one.
func (k Key) String() string {
	if k.Name == "" {
		return strconv.FormatInt(k.Chat, 10)
	}
	return strconv.FormatInt(k.Chat, 10) + separator + k.Name
}

// ParseKey parses the canonical string form back into a Key.
func ParseKey(s string) (Key, error) {
	idPart, name, _ := strings.Cut(s, separator)
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("parsing session key %q: %w", s, err)
	}
	return Key{Chat: id, Name: name}, nil
}

// ValidateName checks a user-supplied session name. Names must be non-empty,
// must not be the reserved default name, and must not contain the separator
// so the string form stays reversible.
func ValidateName(name string) error {
	if name == "" || name == DefaultName || strings.Contains(name, separator) {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return nil
}
