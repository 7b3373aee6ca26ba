// ABOUTME: Live admin role lookup against the Bot API
// ABOUTME: Implements the gate.RoleChecker boundary; deliberately uncached

package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Roles implements gate.RoleChecker with a live GetChatMember call per
// check. Privilege can be revoked between messages, so staleness is not
// acceptable here; the lookup is never cached.
type Roles struct {
	api api
}

// NewRoles creates a role checker over the Bot API.
func NewRoles(client api) *Roles {
	return &Roles{api: client}
}

// IsAdmin reports whether the user currently holds the creator or
// administrator role in the chat.
func (r *Roles) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	member, err := r.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		return false, fmt.Errorf("chat member lookup: %w", err)
	}
	return member.Status == "creator" || member.Status == "administrator", nil
}
