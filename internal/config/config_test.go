// ABOUTME: Tests for configuration loading, env expansion, defaults, validation
// ABOUTME: Uses temp TOML files per case

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skein.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
[telegram]
token = "123:abc"
allowed_chats = [100]
`

func TestLoad_Minimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, []int64{100}, cfg.Telegram.AllowedChats)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "🤔 Thinking...", cfg.Telegram.AckText)
	assert.Equal(t, 4096, cfg.Telegram.ChunkLimit)
	assert.Equal(t, 60, cfg.Telegram.PollTimeout)
	assert.Equal(t, "claude", cfg.Claude.Command)
	assert.Equal(t, 10, cfg.Claude.MaxTurns)
	assert.Equal(t, "whisper-1", cfg.Transcription.Model)
	assert.Equal(t, "sessions.json", cfg.Sessions.Path)
	assert.Equal(t, 10*time.Minute, cfg.Dedupe.TTL)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_SKEIN_TOKEN", "999:secret")

	cfg, err := Load(writeConfig(t, `
[telegram]
token = "${TEST_SKEIN_TOKEN}"
allowed_chats = [100]
`))
	require.NoError(t, err)
	assert.Equal(t, "999:secret", cfg.Telegram.Token)
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[telegram]
token = "123:abc"
allowed_chats = [100, 200]
ack_text = "Working..."
chunk_limit = 2000
poll_timeout = 30

[claude]
command = "/opt/claude"
working_dir = "/srv/bot"
max_turns = 5
system_prompt = "be brief"
permission_mode = "bypassPermissions"

[transcription]
enabled = true
api_key = "sk-test"
model = "whisper-1"

[sessions]
path = "/var/lib/skein/sessions.json"

[history]
path = "/var/lib/skein/history.db"

[dedupe]
ttl = "5m"

[logging]
level = "debug"
`))
	require.NoError(t, err)

	assert.Equal(t, []int64{100, 200}, cfg.Telegram.AllowedChats)
	assert.Equal(t, "Working...", cfg.Telegram.AckText)
	assert.Equal(t, 2000, cfg.Telegram.ChunkLimit)
	assert.Equal(t, "/opt/claude", cfg.Claude.Command)
	assert.Equal(t, 5, cfg.Claude.MaxTurns)
	assert.True(t, cfg.Transcription.Enabled)
	assert.Equal(t, "/var/lib/skein/history.db", cfg.History.Path)
	assert.Equal(t, 5*time.Minute, cfg.Dedupe.TTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_InvalidTOML(t *testing.T) {
	_, err := Load(writeConfig(t, "telegram = [broken"))
	assert.Error(t, err)
}

func TestLoad_BadTTL(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
[dedupe]
ttl = "soon"
`))
	assert.Error(t, err)
}

func TestValidate_MissingToken(t *testing.T) {
	_, err := Load(writeConfig(t, `
[telegram]
allowed_chats = [100]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram.token")
}

func TestValidate_NoAllowedChats(t *testing.T) {
	_, err := Load(writeConfig(t, `
[telegram]
token = "123:abc"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed_chats")
}

func TestValidate_TranscriptionNeedsKey(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
[transcription]
enabled = true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcription.api_key")
}
