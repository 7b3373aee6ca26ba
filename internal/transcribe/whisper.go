// ABOUTME: Voice transcription via the OpenAI audio API
// ABOUTME: Audio bytes in, plain transcript out; no partial results

// Package transcribe converts voice notes to text through the OpenAI
// transcription endpoint. Any failure propagates whole; a partial
// transcript is never produced.
package transcribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Whisper sends audio to the OpenAI transcription endpoint.
type Whisper struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

// NewWhisper creates a transcriber using the given API key. An empty model
// defaults to whisper-1.
func NewWhisper(apiKey, model string, logger *slog.Logger) *Whisper {
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Whisper{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger.With("component", "transcribe"),
	}
}

// Transcribe converts one voice note to text.
func (w *Whisper) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	resp, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, filename, "audio/ogg"),
		Model: openai.AudioModel(w.model),
	})
	if err != nil {
		return "", fmt.Errorf("transcribing audio: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("transcription returned no text")
	}

	w.logger.Debug("transcription complete", "length", len(text))
	return text, nil
}
