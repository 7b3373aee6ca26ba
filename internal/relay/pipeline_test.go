// ABOUTME: Tests for the message pipeline walked with fakes at every boundary
// ABOUTME: Ack-then-edit, session routing, failure notices, chunking, commands

package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/skein/internal/gate"
	"github.com/2389/skein/internal/history"
	"github.com/2389/skein/internal/session"
)

// fakeBackend is a canned Exchanger recording its last invocation.
type fakeBackend struct {
	reply string
	token string
	err   error

	calls      int
	lastPrompt string
	lastResume string
}

func (f *fakeBackend) Exchange(_ context.Context, prompt, resume string) (string, string, error) {
	f.calls++
	f.lastPrompt = prompt
	f.lastResume = resume
	return f.reply, f.token, f.err
}

// fakeTranscriber returns a canned transcript.
type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ io.Reader, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

// fakeDelivery records every outbound message.
type fakeDelivery struct {
	mu     sync.Mutex
	nextID int
	acks   []string
	edits  map[int][]string // message id -> successive texts
	sends  []string
}

func newFakeDelivery() *fakeDelivery {
	return &fakeDelivery{edits: make(map[int][]string)}
}

func (f *fakeDelivery) Ack(_ context.Context, _ int64, _ int, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.acks = append(f.acks, text)
	return f.nextID, nil
}

func (f *fakeDelivery) Edit(_ context.Context, _ int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits[messageID] = append(f.edits[messageID], text)
	return nil
}

func (f *fakeDelivery) Send(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, text)
	return nil
}

func (f *fakeDelivery) lastEdit(messageID int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	edits := f.edits[messageID]
	if len(edits) == 0 {
		return ""
	}
	return edits[len(edits)-1]
}

// fakeRecorder is an in-memory Recorder.
type fakeRecorder struct {
	entries []history.Entry
	appends int
}

func (f *fakeRecorder) Append(_ context.Context, sessionKey string, chatID int64, author, prompt, response string) error {
	f.appends++
	f.entries = append(f.entries,
		history.Entry{SessionKey: sessionKey, ChatID: chatID, Direction: history.DirectionIn, Author: author, Text: prompt},
		history.Entry{SessionKey: sessionKey, ChatID: chatID, Direction: history.DirectionOut, Author: "assistant", Text: response},
	)
	return nil
}

func (f *fakeRecorder) Recent(_ context.Context, chatID int64, limit int) ([]history.Entry, error) {
	var out []history.Entry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].ChatID == chatID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

// allowAll is a RoleChecker admitting everyone.
type allowAll struct{}

func (allowAll) IsAdmin(context.Context, int64, int64) (bool, error) { return true, nil }

// denyAll rejects everyone.
type denyAll struct{}

func (denyAll) IsAdmin(context.Context, int64, int64) (bool, error) { return false, nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	pipeline *Pipeline
	store    *session.Store
	backend  *fakeBackend
	stt      *fakeTranscriber
	delivery *fakeDelivery
	ledger   *fakeRecorder
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()

	store := session.Open(filepath.Join(t.TempDir(), "sessions.json"), testLogger())
	backend := &fakeBackend{reply: "backend reply", token: "tok-new"}
	stt := &fakeTranscriber{text: "transcribed words"}
	delivery := newFakeDelivery()
	ledger := &fakeRecorder{}

	opts := Options{
		Gate:        gate.New([]int64{100}, "skeinbot", allowAll{}, testLogger()),
		Sessions:    store,
		Backend:     backend,
		Transcriber: stt,
		Ledger:      ledger,
		Delivery:    delivery,
		ChunkLimit:  4096,
		Logger:      testLogger(),
	}
	if mutate != nil {
		mutate(&opts)
	}

	return &fixture{
		pipeline: New(opts),
		store:    store,
		backend:  backend,
		stt:      stt,
		delivery: delivery,
		ledger:   ledger,
	}
}

func textEvent(text string) Event {
	return Event{ID: "ev-1", ChatID: 100, UserID: 7, MessageID: 55, Sender: "@will", Text: text}
}

func voiceEvent() Event {
	ev := textEvent("")
	ev.Voice = func(context.Context) (io.Reader, string, error) {
		return strings.NewReader("ogg-bytes"), "voice.ogg", nil
	}
	return ev
}

func TestHandleText_HappyPath(t *testing.T) {
	f := newFixture(t, nil)

	f.pipeline.HandleText(context.Background(), textEvent("@skeinbot hello there"))

	// Early ack fired before the exchange, then edited with the reply.
	require.Len(t, f.delivery.acks, 1)
	assert.Contains(t, f.delivery.acks[0], "@will")
	assert.Contains(t, f.delivery.acks[0], "Thinking")

	final := f.delivery.lastEdit(1)
	assert.Contains(t, final, "@will")
	assert.Contains(t, final, "backend reply")

	// Mention stripped before the backend saw the prompt.
	assert.Equal(t, "hello there", f.backend.lastPrompt)
	assert.Empty(t, f.backend.lastResume)

	// Token persisted under the default key; ledger appended.
	token, ok := f.store.Token(session.DefaultKey(100))
	require.True(t, ok)
	assert.Equal(t, "tok-new", token)
	assert.Equal(t, 1, f.ledger.appends)
}

func TestHandleText_ResumesStoredToken(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.RecordExchange(session.DefaultKey(100), "tok-old"))

	f.pipeline.HandleText(context.Background(), textEvent("@skeinbot continue"))

	assert.Equal(t, "tok-old", f.backend.lastResume)
}

func TestHandleText_GateRejectionIsSilent(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Gate = gate.New([]int64{100}, "skeinbot", denyAll{}, testLogger())
	})

	f.pipeline.HandleText(context.Background(), textEvent("@skeinbot hello"))

	assert.Zero(t, f.backend.calls)
	assert.Empty(t, f.delivery.acks)
	assert.Empty(t, f.delivery.sends)
}

func TestHandleText_NoMentionDropped(t *testing.T) {
	f := newFixture(t, nil)

	f.pipeline.HandleText(context.Background(), textEvent("no marker here"))

	assert.Zero(t, f.backend.calls)
	assert.Empty(t, f.delivery.acks)
}

func TestHandleText_BackendFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.err = errors.New("backend exploded")

	f.pipeline.HandleText(context.Background(), textEvent("@skeinbot hello"))

	// Single error notice replaces the ack; session state untouched.
	final := f.delivery.lastEdit(1)
	assert.Contains(t, final, "Error:")
	assert.Contains(t, final, "backend exploded")

	_, ok := f.store.Token(session.DefaultKey(100))
	assert.False(t, ok)
	assert.Zero(t, f.ledger.appends)
}

func TestHandleText_NamedSessionDecoratesReply(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.store.CreateNamed(100, "debug")
	require.NoError(t, err)

	f.pipeline.HandleText(context.Background(), textEvent("@skeinbot next step"))

	final := f.delivery.lastEdit(1)
	assert.Contains(t, final, "📌 debug")

	// Exchange landed under the named key.
	token, ok := f.store.Token(session.NamedKey(100, "debug"))
	require.True(t, ok)
	assert.Equal(t, "tok-new", token)
}

func TestHandleText_ChunkedDelivery(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.ChunkLimit = 20 })
	f.backend.reply = "alpha beta gamma delta epsilon zeta eta theta"

	f.pipeline.HandleText(context.Background(), textEvent("@skeinbot go"))

	// First chunk edits the ack; the rest go out as plain sends.
	assert.NotEmpty(t, f.delivery.lastEdit(1))
	assert.NotEmpty(t, f.delivery.sends)

	var rebuilt []string
	rebuilt = append(rebuilt, f.delivery.lastEdit(1))
	rebuilt = append(rebuilt, f.delivery.sends...)
	joined := strings.Join(rebuilt, " ")
	assert.Contains(t, joined, "theta")
	for _, c := range rebuilt {
		assert.LessOrEqual(t, len([]rune(c)), 20)
	}
}

func TestHandleVoice_HappyPath(t *testing.T) {
	f := newFixture(t, nil)

	f.pipeline.HandleVoice(context.Background(), voiceEvent())

	require.Len(t, f.delivery.acks, 1)
	assert.Contains(t, f.delivery.acks[0], "🎤 Transcribing")

	// Transcript shown while the exchange ran, then the final reply.
	edits := f.delivery.edits[1]
	require.NotEmpty(t, edits)
	assert.Contains(t, edits[0], `"transcribed words"`)

	final := edits[len(edits)-1]
	assert.Contains(t, final, "backend reply")
	assert.Contains(t, final, "🎤")

	assert.Equal(t, 1, f.stt.calls)
	assert.Equal(t, "transcribed words", f.backend.lastPrompt)
}

func TestHandleVoice_TranscriptionFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.stt.err = errors.New("no speech detected")

	f.pipeline.HandleVoice(context.Background(), voiceEvent())

	final := f.delivery.lastEdit(1)
	assert.Contains(t, final, "Error:")
	assert.Zero(t, f.backend.calls, "no exchange after failed transcription")
}

func TestHandleVoice_DisabledTranscription(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Transcriber = nil })

	f.pipeline.HandleVoice(context.Background(), voiceEvent())

	require.Len(t, f.delivery.sends, 1)
	assert.Contains(t, f.delivery.sends[0], "not enabled")
	assert.Zero(t, f.backend.calls)
}

func TestHandleVoice_DownloadFailure(t *testing.T) {
	f := newFixture(t, nil)
	ev := textEvent("")
	ev.Voice = func(context.Context) (io.Reader, string, error) {
		return nil, "", errors.New("file gone")
	}

	f.pipeline.HandleVoice(context.Background(), ev)

	assert.Contains(t, f.delivery.lastEdit(1), "Error:")
	assert.Zero(t, f.stt.calls)
}

func TestReset_WithSession(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.RecordExchange(session.DefaultKey(100), "tok"))

	f.pipeline.Reset(context.Background(), textEvent(""))

	require.Len(t, f.delivery.sends, 1)
	assert.Contains(t, f.delivery.sends[0], "Session cleared")

	_, ok := f.store.Token(session.DefaultKey(100))
	assert.False(t, ok)
}

func TestReset_NoSession(t *testing.T) {
	f := newFixture(t, nil)

	f.pipeline.Reset(context.Background(), textEvent(""))

	require.Len(t, f.delivery.sends, 1)
	assert.Contains(t, f.delivery.sends[0], "No active session")
}

func TestNewSession_RunsFirstExchangeUnderNamedKey(t *testing.T) {
	f := newFixture(t, nil)

	f.pipeline.NewSession(context.Background(), textEvent(""), "debug", "help me")

	require.Len(t, f.delivery.acks, 1)
	assert.Contains(t, f.delivery.acks[0], "Starting session 'debug'")

	assert.Equal(t, "help me", f.backend.lastPrompt)
	assert.Equal(t, "100:debug", f.store.ResolveKey(100).String())

	token, ok := f.store.Token(session.NamedKey(100, "debug"))
	require.True(t, ok)
	assert.Equal(t, "tok-new", token)

	assert.Contains(t, f.delivery.lastEdit(1), "📌 debug")
}

func TestNewSession_MissingArgs(t *testing.T) {
	f := newFixture(t, nil)

	f.pipeline.NewSession(context.Background(), textEvent(""), "debug", "")

	require.Len(t, f.delivery.sends, 1)
	assert.Contains(t, f.delivery.sends[0], "Usage: /new_session")
	assert.Zero(t, f.backend.calls)
}

func TestNewSession_BadName(t *testing.T) {
	f := newFixture(t, nil)

	f.pipeline.NewSession(context.Background(), textEvent(""), "a:b", "prompt")

	require.Len(t, f.delivery.sends, 1)
	assert.Contains(t, f.delivery.sends[0], "must not contain")
	assert.Zero(t, f.backend.calls)
	assert.Equal(t, session.DefaultKey(100), f.store.ResolveKey(100))
}

func TestSwitchSession_NotFound(t *testing.T) {
	f := newFixture(t, nil)

	f.pipeline.SwitchSession(context.Background(), textEvent(""), "ghost")

	require.Len(t, f.delivery.sends, 1)
	assert.Contains(t, f.delivery.sends[0], "not found")
	assert.Equal(t, session.DefaultKey(100), f.store.ResolveKey(100))
}

func TestSwitchSession_ToNamedAndBack(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.RecordExchange(session.NamedKey(100, "debug"), "tok"))

	f.pipeline.SwitchSession(context.Background(), textEvent(""), "debug")
	assert.Contains(t, f.delivery.sends[0], "Switched to session 'debug'")
	assert.Equal(t, "100:debug", f.store.ResolveKey(100).String())

	f.pipeline.SwitchSession(context.Background(), textEvent(""), "default")
	assert.Contains(t, f.delivery.sends[1], "Switched to default")
	assert.Equal(t, "100", f.store.ResolveKey(100).String())
}

func TestSwitchSession_NoArgListsSessions(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.RecordExchange(session.NamedKey(100, "debug"), "tok"))

	f.pipeline.SwitchSession(context.Background(), textEvent(""), "")

	require.Len(t, f.delivery.sends, 1)
	assert.Contains(t, f.delivery.sends[0], "Available sessions: debug")
}

func TestSwitchSession_NoArgNoNamedSessions(t *testing.T) {
	f := newFixture(t, nil)

	f.pipeline.SwitchSession(context.Background(), textEvent(""), "")

	require.Len(t, f.delivery.sends, 1)
	assert.Contains(t, f.delivery.sends[0], "No named sessions")
}

func TestListSessions(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.RecordExchange(session.DefaultKey(100), "tok-default-long"))
	require.NoError(t, f.store.RecordExchange(session.NamedKey(100, "debug"), "tok-debug-long"))
	_, err := f.store.CreateNamed(100, "debug")
	require.NoError(t, err)

	f.pipeline.ListSessions(context.Background(), textEvent(""))

	require.Len(t, f.delivery.sends, 1)
	out := f.delivery.sends[0]
	assert.Contains(t, out, "Sessions:")
	assert.Contains(t, out, "default (tok-defa...)")
	assert.Contains(t, out, "→ debug (tok-debu...)")
}

func TestHistory_Disabled(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Ledger = nil })

	f.pipeline.History(context.Background(), textEvent(""), "")

	require.Len(t, f.delivery.sends, 1)
	assert.Contains(t, f.delivery.sends[0], "not enabled")
}

func TestHistory_DefaultLimit(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ledger.Append(context.Background(), "100", 100, "@will", "a question", "an answer"))

	f.pipeline.History(context.Background(), textEvent(""), "")

	require.Len(t, f.delivery.sends, 1)
	assert.Contains(t, f.delivery.sends[0], "Recent exchanges")
	assert.Contains(t, f.delivery.sends[0], "a question")
}

func TestHistory_MalformedCount(t *testing.T) {
	f := newFixture(t, nil)

	f.pipeline.History(context.Background(), textEvent(""), "lots")

	require.Len(t, f.delivery.sends, 1)
	assert.Contains(t, f.delivery.sends[0], "Usage: /history")
}

func TestCommands_GatedToo(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Gate = gate.New([]int64{100}, "skeinbot", denyAll{}, testLogger())
	})
	require.NoError(t, f.store.RecordExchange(session.DefaultKey(100), "tok"))

	f.pipeline.Reset(context.Background(), textEvent(""))
	f.pipeline.ListSessions(context.Background(), textEvent(""))
	f.pipeline.History(context.Background(), textEvent(""), "")

	assert.Empty(t, f.delivery.sends)

	// Rejected reset changed nothing.
	_, ok := f.store.Token(session.DefaultKey(100))
	assert.True(t, ok)
}
