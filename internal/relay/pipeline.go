// ABOUTME: Message pipeline orchestrating gate, session router, backend, chunker, delivery
// ABOUTME: One handler invocation per inbound event; every failure stays per-event

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/2389/skein/internal/chunk"
	"github.com/2389/skein/internal/gate"
	"github.com/2389/skein/internal/history"
	"github.com/2389/skein/internal/session"
)

// Exchanger is the conversation backend boundary: one prompt plus an
// optional resume token in, response text plus an optional new token out.
type Exchanger interface {
	Exchange(ctx context.Context, prompt, resumeToken string) (text, newToken string, err error)
}

// Transcriber is the speech-to-text boundary.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Recorder is the optional exchange ledger.
type Recorder interface {
	Append(ctx context.Context, sessionKey string, chatID int64, author, prompt, response string) error
	Recent(ctx context.Context, chatID int64, limit int) ([]history.Entry, error)
}

// Delivery sends outbound messages. Ack posts an immediate placeholder
// reply and returns a message id the final content is edited into.
type Delivery interface {
	Ack(ctx context.Context, chatID int64, replyTo int, text string) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string) error
	Send(ctx context.Context, chatID int64, text string) error
}

// Event is one inbound message, normalized by the transport layer.
type Event struct {
	ID        string // correlation id for logs
	ChatID    int64
	UserID    int64
	MessageID int
	Sender    string // how to address the sender in replies, e.g. "@will"
	Text      string // raw text; empty for voice events

	// Voice fetches the audio of a voice note. Nil for text events. The
	// download is deferred so unauthorized events never trigger it.
	Voice func(ctx context.Context) (io.Reader, string, error)
}

// Options wires a Pipeline.
type Options struct {
	Gate        *gate.Gate
	Sessions    *session.Store
	Backend     Exchanger
	Transcriber Transcriber // nil when transcription is disabled
	Ledger      Recorder    // nil when the ledger is disabled
	Delivery    Delivery
	ChunkLimit  int
	AckText     string
	Logger      *slog.Logger
}

// Pipeline walks each inbound event through gate, session resolution,
// the backend exchange, chunking, and delivery.
type Pipeline struct {
	gate     *gate.Gate
	sessions *session.Store
	backend  Exchanger
	stt      Transcriber
	ledger   Recorder
	delivery Delivery
	maxLen   int
	ackText  string
	logger   *slog.Logger
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ackText := opts.AckText
	if ackText == "" {
		ackText = "🤔 Thinking..."
	}
	maxLen := opts.ChunkLimit
	if maxLen < 1 {
		maxLen = 4096
	}
	return &Pipeline{
		gate:     opts.Gate,
		sessions: opts.Sessions,
		backend:  opts.Backend,
		stt:      opts.Transcriber,
		ledger:   opts.Ledger,
		delivery: opts.Delivery,
		maxLen:   maxLen,
		ackText:  ackText,
		logger:   logger.With("component", "relay"),
	}
}

// HandleText processes one plain text message: gate, early ack, exchange,
// chunked delivery.
func (p *Pipeline) HandleText(ctx context.Context, ev Event) {
	cleaned, ok := p.gate.Admit(ctx, gate.Request{
		ChatID: ev.ChatID,
		UserID: ev.UserID,
		Kind:   gate.KindText,
		Text:   ev.Text,
	})
	if !ok {
		return
	}

	p.logger.Info("processing text message", "event", ev.ID, "chat", ev.ChatID, "length", len(cleaned))

	ackID := p.ack(ctx, ev, fmt.Sprintf("%s %s", ev.Sender, p.ackText))
	p.converse(ctx, ev, cleaned, ackID, "")
}

// HandleVoice processes one voice note: gate, transcribe, then the same
// exchange path as text with the transcript echoed back in the reply.
func (p *Pipeline) HandleVoice(ctx context.Context, ev Event) {
	if _, ok := p.gate.Admit(ctx, gate.Request{ChatID: ev.ChatID, UserID: ev.UserID, Kind: gate.KindVoice}); !ok {
		return
	}

	if p.stt == nil || ev.Voice == nil {
		p.send(ctx, ev.ChatID, fmt.Sprintf("%s Voice messages are not enabled.", ev.Sender))
		return
	}

	p.logger.Info("processing voice message", "event", ev.ID, "chat", ev.ChatID)

	ackID := p.ack(ctx, ev, fmt.Sprintf("%s 🎤 Transcribing voice message...", ev.Sender))

	audio, filename, err := ev.Voice(ctx)
	if err != nil {
		p.logger.Error("voice download failed", "event", ev.ID, "error", err)
		p.respond(ctx, ev, ackID, fmt.Sprintf("%s Error: %v", ev.Sender, err))
		return
	}

	transcript, err := p.stt.Transcribe(ctx, audio, filename)
	if err != nil {
		p.logger.Error("transcription failed", "event", ev.ID, "error", err)
		p.respond(ctx, ev, ackID, fmt.Sprintf("%s Error: %v", ev.Sender, err))
		return
	}

	// Show the transcript while the exchange runs.
	voiceNote := fmt.Sprintf("🎤 %q", transcript)
	if ackID != 0 {
		p.edit(ctx, ev.ChatID, ackID, fmt.Sprintf("%s %s\n\n%s", ev.Sender, voiceNote, p.ackText))
	}

	p.converse(ctx, ev, transcript, ackID, voiceNote)
}

// converse resolves the session, performs the exchange, persists the new
// token, records the ledger rows, and delivers the chunked reply. The store
// lock is only ever taken inside the session calls, never across the
// backend exchange.
func (p *Pipeline) converse(ctx context.Context, ev Event, prompt string, ackID int, voiceNote string) {
	key := p.sessions.ResolveKey(ev.ChatID)
	token, resumed := p.sessions.Token(key)
	p.logger.Debug("session resolved", "event", ev.ID, "key", key.String(), "resumed", resumed)

	reply, newToken, err := p.backend.Exchange(ctx, prompt, token)
	if err != nil {
		p.logger.Error("exchange failed", "event", ev.ID, "key", key.String(), "error", err)
		p.respond(ctx, ev, ackID, fmt.Sprintf("%s Error: %v", ev.Sender, err))
		return
	}

	if err := p.sessions.RecordExchange(key, newToken); err != nil {
		p.logger.Warn("session state not persisted", "event", ev.ID, "key", key.String(), "error", err)
	}

	if p.ledger != nil {
		if err := p.ledger.Append(ctx, key.String(), ev.ChatID, ev.Sender, prompt, reply); err != nil {
			p.logger.Warn("ledger append failed", "event", ev.ID, "error", err)
		}
	}

	p.deliver(ctx, ev, ackID, voiceNote, key, reply)
}

// deliver decorates the reply, splits it to the transport limit, edits the
// ack with the first chunk, and sends the rest as follow-on messages.
func (p *Pipeline) deliver(ctx context.Context, ev Event, ackID int, voiceNote string, key session.Key, reply string) {
	var b strings.Builder
	b.WriteString(ev.Sender)
	b.WriteString(" ")
	if voiceNote != "" {
		b.WriteString(voiceNote)
		b.WriteString("\n\n")
	}
	if key.Named() {
		b.WriteString("📌 ")
		b.WriteString(key.Name)
		b.WriteString("\n\n")
	}
	b.WriteString(reply)

	chunks := chunk.Split(b.String(), p.maxLen)
	if len(chunks) == 0 {
		p.logger.Warn("empty response from backend", "event", ev.ID, "chat", ev.ChatID)
		return
	}

	p.logger.Info("sending response", "event", ev.ID, "chat", ev.ChatID, "chunks", len(chunks))

	p.respond(ctx, ev, ackID, chunks[0])
	for _, c := range chunks[1:] {
		p.send(ctx, ev.ChatID, c)
	}
}

// Reset clears the chat's current session.
func (p *Pipeline) Reset(ctx context.Context, ev Event) {
	if !p.admitCommand(ctx, ev) {
		return
	}

	existed, err := p.sessions.Reset(ev.ChatID)
	if err != nil {
		p.logger.Warn("session state not persisted", "event", ev.ID, "chat", ev.ChatID, "error", err)
	}

	if existed {
		p.send(ctx, ev.ChatID, fmt.Sprintf("%s 🔄 Session cleared. Starting fresh!", ev.Sender))
	} else {
		p.send(ctx, ev.ChatID, fmt.Sprintf("%s No active session to reset.", ev.Sender))
	}
}

// NewSession creates a named session, makes it active, and runs its first
// exchange with the given prompt.
func (p *Pipeline) NewSession(ctx context.Context, ev Event, name, prompt string) {
	if !p.admitCommand(ctx, ev) {
		return
	}

	if name == "" || prompt == "" {
		p.send(ctx, ev.ChatID, fmt.Sprintf(
			"%s Usage: /new_session <name> <prompt>\nExample: /new_session debug Help me debug this issue",
			ev.Sender))
		return
	}

	_, err := p.sessions.CreateNamed(ev.ChatID, name)
	if errors.Is(err, session.ErrBadName) {
		p.send(ctx, ev.ChatID, fmt.Sprintf(
			"%s Session names must be non-empty, not %q, and must not contain ':'.",
			ev.Sender, session.DefaultName))
		return
	}
	if err != nil {
		p.logger.Warn("session state not persisted", "event", ev.ID, "chat", ev.ChatID, "error", err)
	}

	ackID := p.ack(ctx, ev, fmt.Sprintf("%s 🆕 Starting session '%s'...\n%s", ev.Sender, name, p.ackText))
	p.converse(ctx, ev, prompt, ackID, "")
}

// SwitchSession repoints the chat's unqualified messages. An empty name
// replies with the session list as a usage hint.
func (p *Pipeline) SwitchSession(ctx context.Context, ev Event, name string) {
	if !p.admitCommand(ctx, ev) {
		return
	}

	if name == "" {
		p.sendSwitchHint(ctx, ev)
		return
	}

	key, err := p.sessions.Switch(ev.ChatID, name)
	if errors.Is(err, session.ErrNotFound) {
		p.send(ctx, ev.ChatID, fmt.Sprintf(
			"%s Session '%s' not found. Use /new_session to create it.", ev.Sender, name))
		return
	}
	if err != nil {
		p.logger.Warn("session state not persisted", "event", ev.ID, "chat", ev.ChatID, "error", err)
	}

	if key.Named() {
		p.send(ctx, ev.ChatID, fmt.Sprintf("%s 🔀 Switched to session '%s'", ev.Sender, key.Name))
	} else {
		p.send(ctx, ev.ChatID, fmt.Sprintf("%s 🔀 Switched to default session", ev.Sender))
	}
}

// ListSessions replies with the chat's session summary. Read-only.
func (p *Pipeline) ListSessions(ctx context.Context, ev Event) {
	if !p.admitCommand(ctx, ev) {
		return
	}
	p.send(ctx, ev.ChatID, formatSummary(ev.Sender, p.sessions.List(ev.ChatID)))
}

// History replies with the chat's most recent ledger entries. arg is the
// raw command argument: empty for the default count, otherwise a number.
func (p *Pipeline) History(ctx context.Context, ev Event, arg string) {
	if !p.admitCommand(ctx, ev) {
		return
	}

	if p.ledger == nil {
		p.send(ctx, ev.ChatID, fmt.Sprintf("%s History is not enabled.", ev.Sender))
		return
	}

	limit := defaultHistoryLimit
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			p.send(ctx, ev.ChatID, fmt.Sprintf("%s Usage: /history [count]", ev.Sender))
			return
		}
		limit = n
	}

	entries, err := p.ledger.Recent(ctx, ev.ChatID, limit)
	if err != nil {
		p.logger.Error("history query failed", "event", ev.ID, "chat", ev.ChatID, "error", err)
		p.send(ctx, ev.ChatID, fmt.Sprintf("%s Error: could not read history.", ev.Sender))
		return
	}

	p.send(ctx, ev.ChatID, formatHistory(ev.Sender, entries))
}

func (p *Pipeline) admitCommand(ctx context.Context, ev Event) bool {
	_, ok := p.gate.Admit(ctx, gate.Request{ChatID: ev.ChatID, UserID: ev.UserID, Kind: gate.KindCommand})
	return ok
}

func (p *Pipeline) sendSwitchHint(ctx context.Context, ev Event) {
	sum := p.sessions.List(ev.ChatID)
	if len(sum.Named) == 0 {
		p.send(ctx, ev.ChatID, fmt.Sprintf("%s No named sessions. Use /new_session to create one.", ev.Sender))
		return
	}

	current := sum.Active
	if current == "" {
		current = session.DefaultName
	}
	p.send(ctx, ev.ChatID, fmt.Sprintf(
		"%s 📋 Available sessions: %s\nCurrent: %s\n\nUse /switch <name> to switch, or /switch default for the unnamed session",
		ev.Sender, strings.Join(sortedNames(sum.Named), ", "), current))
}

// ack posts the early acknowledgment. A failed ack is logged and the
// pipeline carries on; the final reply falls back to a plain send.
func (p *Pipeline) ack(ctx context.Context, ev Event, text string) int {
	id, err := p.delivery.Ack(ctx, ev.ChatID, ev.MessageID, text)
	if err != nil {
		p.logger.Warn("acknowledgment failed", "event", ev.ID, "chat", ev.ChatID, "error", err)
		return 0
	}
	return id
}

// respond edits the ack when one exists, otherwise sends a fresh message.
func (p *Pipeline) respond(ctx context.Context, ev Event, ackID int, text string) {
	if ackID != 0 {
		p.edit(ctx, ev.ChatID, ackID, text)
		return
	}
	p.send(ctx, ev.ChatID, text)
}

func (p *Pipeline) edit(ctx context.Context, chatID int64, messageID int, text string) {
	if err := p.delivery.Edit(ctx, chatID, messageID, text); err != nil {
		p.logger.Error("failed to edit message", "chat", chatID, "message", messageID, "error", err)
	}
}

func (p *Pipeline) send(ctx context.Context, chatID int64, text string) {
	if err := p.delivery.Send(ctx, chatID, text); err != nil {
		p.logger.Error("failed to send message", "chat", chatID, "error", err)
	}
}
