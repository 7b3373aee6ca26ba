// ABOUTME: Outbound delivery: ack-then-edit replies and plain sends
// ABOUTME: Implements the relay.Delivery boundary over the Bot API

package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender implements relay.Delivery. Replies go out as plain text — markup
// rendering is deliberately out of scope.
type Sender struct {
	api    api
	logger *slog.Logger
}

// NewSender creates a delivery adapter over the Bot API.
func NewSender(client api, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{api: client, logger: logger.With("component", "telegram")}
}

// Ack posts the placeholder reply and returns its message id so the final
// content can be edited in.
func (s *Sender) Ack(ctx context.Context, chatID int64, replyTo int, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo

	sent, err := s.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("sending acknowledgment: %w", err)
	}
	return sent.MessageID, nil
}

// Edit replaces a previously sent message's text.
func (s *Sender) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	if _, err := s.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return fmt.Errorf("editing message %d: %w", messageID, err)
	}
	return nil
}

// Send posts a standalone message.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) error {
	if _, err := s.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}
