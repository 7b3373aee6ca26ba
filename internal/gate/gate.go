// ABOUTME: Access gate deciding whether an inbound event may reach the backend
// ABOUTME: Chat allow-list, live admin role check, and invocation-mention stripping

package gate

import (
	"context"
	"log/slog"
	"strings"
	"unicode"
)

// RoleChecker looks up the sender's current role in a chat. The lookup runs
// live on every message: privilege revoked between messages must take effect
// on the next one, so results are never cached.
type RoleChecker interface {
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// Kind classifies an inbound event for gating purposes.
type Kind int

const (
	// KindText is a plain text message; it must carry the bot mention.
	KindText Kind = iota
	// KindVoice is a voice note; exempt from the mention requirement
	// because a marker cannot be embedded in audio.
	KindVoice
	// KindCommand is a slash command; the command itself is the
	// invocation marker.
	KindCommand
)

// Request is one inbound event presented to the gate.
type Request struct {
	ChatID int64
	UserID int64
	Kind   Kind
	Text   string
}

// Gate applies the admission checks. It holds no mutable state; its only
// external call is the role lookup.
type Gate struct {
	allowed map[int64]bool
	botName string // bot username, without the leading @
	roles   RoleChecker
	logger  *slog.Logger
}

// New creates a gate admitting messages from the given chats.
func New(allowedChats []int64, botName string, roles RoleChecker, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[int64]bool, len(allowedChats))
	for _, id := range allowedChats {
		allowed[id] = true
	}
	return &Gate{
		allowed: allowed,
		botName: strings.TrimPrefix(botName, "@"),
		roles:   roles,
		logger:  logger.With("component", "gate"),
	}
}

// Admit decides whether the event may proceed. For admitted text it returns
// the text with the invocation mention stripped. Rejections are silent: the
// caller drops the event without replying. A failed role lookup rejects —
// the gate fails closed.
func (g *Gate) Admit(ctx context.Context, req Request) (string, bool) {
	if !g.allowed[req.ChatID] {
		g.logger.Debug("ignoring message from non-allowed chat", "chat", req.ChatID)
		return "", false
	}

	admin, err := g.roles.IsAdmin(ctx, req.ChatID, req.UserID)
	if err != nil {
		g.logger.Warn("role lookup failed, rejecting", "chat", req.ChatID, "user", req.UserID, "error", err)
		return "", false
	}
	if !admin {
		g.logger.Debug("ignoring message from non-admin", "chat", req.ChatID, "user", req.UserID)
		return "", false
	}

	if req.Kind != KindText {
		return strings.TrimSpace(req.Text), true
	}

	cleaned, ok := stripMention(req.Text, g.botName)
	if !ok {
		g.logger.Debug("ignoring text without bot mention", "chat", req.ChatID)
		return "", false
	}
	if cleaned == "" {
		g.logger.Debug("ignoring mention with no content", "chat", req.ChatID)
		return "", false
	}
	return cleaned, true
}

// stripMention removes the first case-insensitive @botName mention and
// collapses the whitespace around the splice. ok is false when the text
// carries no mention. A mention followed directly by a word character
// (e.g. @botnamex) does not count.
func stripMention(text, botName string) (string, bool) {
	marker := "@" + strings.ToLower(botName)
	lower := strings.ToLower(text)

	from := 0
	for {
		idx := strings.Index(lower[from:], marker)
		if idx < 0 {
			return "", false
		}
		idx += from
		end := idx + len(marker)
		if end < len(text) && isWordRune(rune(text[end])) {
			from = end
			continue
		}
		before := strings.TrimRight(text[:idx], " ")
		after := strings.TrimLeft(text[end:], " ")
		return strings.TrimSpace(before + " " + after), true
	}
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
