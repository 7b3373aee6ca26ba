// ABOUTME: Telegram transport: long-poll update loop and message dispatch
// ABOUTME: Normalizes updates into pipeline events; one goroutine per update

package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/2389/skein/internal/dedupe"
	"github.com/2389/skein/internal/relay"
)

// api is the slice of the Bot API the transport uses, an interface so tests
// can substitute a fake. *tgbotapi.BotAPI satisfies it.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// downloadTimeout bounds one voice file download.
const downloadTimeout = 30 * time.Second

// Bot runs the update loop and hands normalized events to the pipeline.
type Bot struct {
	api         api
	self        string // bot username, without the @
	pipeline    *relay.Pipeline
	guard       *dedupe.Guard
	pollTimeout int
	http        *http.Client
	logger      *slog.Logger
}

// New creates a transport around an authorized Bot API client.
func New(client api, selfName string, pipeline *relay.Pipeline, guard *dedupe.Guard, pollTimeout int, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if pollTimeout <= 0 {
		pollTimeout = 60
	}
	return &Bot{
		api:         client,
		self:        strings.TrimPrefix(selfName, "@"),
		pipeline:    pipeline,
		guard:       guard,
		pollTimeout: pollTimeout,
		http:        &http.Client{Timeout: downloadTimeout},
		logger:      logger.With("component", "telegram"),
	}
}

// Run starts the long-poll loop and blocks until the context is cancelled.
// Each update is handled in its own goroutine; cross-chat concurrency is
// fine because the session store serializes its own writes.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	u.AllowedUpdates = []string{"message"}

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("telegram bot running", "username", b.self)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("shutting down telegram bot")
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			if b.guard.Seen(int64(update.UpdateID)) {
				b.logger.Debug("dropping redelivered update", "update", update.UpdateID)
				continue
			}
			go b.handle(ctx, update.Message)
		}
	}
}

// handle dispatches one message to the pipeline.
func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	ev := relay.Event{
		ID:        uuid.NewString(),
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		MessageID: msg.MessageID,
		Sender:    mention(msg.From),
	}

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, ev, msg)
	case msg.Voice != nil:
		b.typing(msg.Chat.ID)
		ev.Voice = b.voiceFetcher(msg.Voice.FileID)
		b.pipeline.HandleVoice(ctx, ev)
	case msg.Text != "":
		b.typing(msg.Chat.ID)
		ev.Text = msg.Text
		b.pipeline.HandleText(ctx, ev)
	}
}

// handleCommand maps slash commands onto pipeline operations. Telegram has
// already stripped the /cmd@botname suffix via Command().
func (b *Bot) handleCommand(ctx context.Context, ev relay.Event, msg *tgbotapi.Message) {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "reset":
		b.pipeline.Reset(ctx, ev)
	case "new_session":
		name, prompt := splitNameAndPrompt(args)
		b.pipeline.NewSession(ctx, ev, name, prompt)
	case "switch":
		b.pipeline.SwitchSession(ctx, ev, args)
	case "sessions":
		b.pipeline.ListSessions(ctx, ev)
	case "history":
		b.pipeline.History(ctx, ev, args)
	default:
		// Unknown commands may belong to other bots in the chat.
		b.logger.Debug("ignoring unknown command", "command", msg.Command())
	}
}

// voiceFetcher defers the audio download until the pipeline has authorized
// the event.
func (b *Bot) voiceFetcher(fileID string) func(ctx context.Context) (io.Reader, string, error) {
	return func(ctx context.Context) (io.Reader, string, error) {
		url, err := b.api.GetFileDirectURL(fileID)
		if err != nil {
			return nil, "", fmt.Errorf("resolving voice file: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, "", fmt.Errorf("building voice download request: %w", err)
		}
		resp, err := b.http.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("downloading voice file: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("downloading voice file: status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", fmt.Errorf("reading voice file: %w", err)
		}
		return bytes.NewReader(data), "voice.ogg", nil
	}
}

// typing sends the typing chat action; purely cosmetic, failures are debug
// noise only.
func (b *Bot) typing(chatID int64) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Debug("failed to send typing action", "chat", chatID, "error", err)
	}
}

// mention renders how replies address the sender.
func mention(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return u.FirstName
}

// splitNameAndPrompt parses "/new_session <name> <prompt...>" arguments.
func splitNameAndPrompt(args string) (name, prompt string) {
	name, prompt, _ = strings.Cut(args, " ")
	return name, strings.TrimSpace(prompt)
}
