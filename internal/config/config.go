// ABOUTME: Configuration loading and parsing for skein-telegram
// ABOUTME: Supports TOML files with environment variable expansion and validation

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the complete skein-telegram configuration.
type Config struct {
	Telegram      TelegramConfig      `toml:"telegram"`
	Claude        ClaudeConfig        `toml:"claude"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Sessions      SessionsConfig      `toml:"sessions"`
	History       HistoryConfig       `toml:"history"`
	Dedupe        DedupeConfig        `toml:"dedupe"`
	Logging       LoggingConfig       `toml:"logging"`
}

// TelegramConfig holds transport configuration.
type TelegramConfig struct {
	Token        string  `toml:"token"`
	AllowedChats []int64 `toml:"allowed_chats"`
	AckText      string  `toml:"ack_text"`     // early acknowledgment placeholder
	ChunkLimit   int     `toml:"chunk_limit"`  // max outbound message length in runes
	PollTimeout  int     `toml:"poll_timeout"` // long-poll timeout in seconds
}

// ClaudeConfig holds conversation backend configuration.
type ClaudeConfig struct {
	Command        string `toml:"command"`
	WorkingDir     string `toml:"working_dir"`
	MaxTurns       int    `toml:"max_turns"`
	SystemPrompt   string `toml:"system_prompt"`
	PermissionMode string `toml:"permission_mode"`
}

// TranscriptionConfig holds voice transcription configuration.
type TranscriptionConfig struct {
	Enabled bool   `toml:"enabled"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

// SessionsConfig holds session persistence configuration.
type SessionsConfig struct {
	Path string `toml:"path"`
}

// HistoryConfig holds exchange ledger configuration. An empty path
// disables the ledger.
type HistoryConfig struct {
	Path string `toml:"path"`
}

// DedupeConfig holds replay guard configuration.
type DedupeConfig struct {
	TTL time.Duration `toml:"-"`

	// Raw string value for TOML unmarshaling
	TTLRaw string `toml:"ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Load reads config from the given path, expanding environment variables
// and applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables (${VAR} syntax)
	expanded := expandEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	if cfg.Dedupe.TTLRaw != "" {
		ttl, err := time.ParseDuration(cfg.Dedupe.TTLRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing dedupe.ttl: %w", err)
		}
		cfg.Dedupe.TTL = ttl
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Telegram.AckText == "" {
		c.Telegram.AckText = "🤔 Thinking..."
	}
	if c.Telegram.ChunkLimit == 0 {
		c.Telegram.ChunkLimit = 4096
	}
	if c.Telegram.PollTimeout == 0 {
		c.Telegram.PollTimeout = 60
	}
	if c.Claude.Command == "" {
		c.Claude.Command = "claude"
	}
	if c.Claude.MaxTurns == 0 {
		c.Claude.MaxTurns = 10
	}
	if c.Transcription.Model == "" {
		c.Transcription.Model = "whisper-1"
	}
	if c.Sessions.Path == "" {
		c.Sessions.Path = "sessions.json"
	}
	if c.Dedupe.TTL == 0 {
		c.Dedupe.TTL = 10 * time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that required config fields are present and sane.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if len(c.Telegram.AllowedChats) == 0 {
		return fmt.Errorf("telegram.allowed_chats must list at least one chat")
	}
	if c.Telegram.ChunkLimit < 1 {
		return fmt.Errorf("telegram.chunk_limit must be at least 1")
	}
	if c.Claude.MaxTurns < 0 {
		return fmt.Errorf("claude.max_turns must not be negative")
	}
	if c.Transcription.Enabled && c.Transcription.APIKey == "" {
		return fmt.Errorf("transcription.api_key is required when transcription is enabled")
	}
	return nil
}
