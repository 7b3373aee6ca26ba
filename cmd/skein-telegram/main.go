// ABOUTME: Entry point for skein-telegram
// ABOUTME: Relays Telegram chat messages to the claude CLI with session continuity

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/2389/skein/internal/claude"
	"github.com/2389/skein/internal/config"
	"github.com/2389/skein/internal/dedupe"
	"github.com/2389/skein/internal/gate"
	"github.com/2389/skein/internal/history"
	"github.com/2389/skein/internal/relay"
	"github.com/2389/skein/internal/session"
	"github.com/2389/skein/internal/telegram"
	"github.com/2389/skein/internal/transcribe"
)

const banner = `
    ╭────────────────────────────────╮
    │                                │
    │   ┏━┓╻┏ ┏━╸╻┏┓╻                │
    │   ┗━┓┣┻┓┣╸ ┃┃┗┫                │
    │   ┗━┛╹ ╹┗━╸╹╹ ╹                │
    │                                │
    │       skein-telegram relay     │
    │                                │
    ╰────────────────────────────────╯
`

// getConfigPath returns the path to the config file.
// Priority: SKEIN_CONFIG env var > XDG_CONFIG_HOME/skein/skein.toml > ~/.config/skein/skein.toml
func getConfigPath() string {
	if envPath := os.Getenv("SKEIN_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "skein.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "skein", "skein.toml")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	configPath := getConfigPath()

	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging.Level)

	// Connect to Telegram
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("connecting to telegram: %w", err)
	}

	// Print startup info
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Bot:       @%s\n", botAPI.Self.UserName)
	green.Print("    ▶ ")
	fmt.Printf("Chats:     %v\n", cfg.Telegram.AllowedChats)
	green.Print("    ▶ ")
	fmt.Printf("Sessions:  %s\n", cfg.Sessions.Path)
	if cfg.History.Path != "" {
		green.Print("    ▶ ")
		fmt.Printf("History:   %s\n", cfg.History.Path)
	}
	if cfg.Transcription.Enabled {
		green.Print("    ▶ ")
		fmt.Println("Voice:     enabled")
	}
	green.Print("    ▶ ")
	fmt.Println("Commands:  /reset /new_session /switch /sessions /history")
	fmt.Println()

	// Session store: owned here, final flush on the way out
	store := session.Open(cfg.Sessions.Path, logger)
	defer func() {
		if err := store.Flush(); err != nil {
			logger.Warn("final session flush failed", "error", err)
		}
	}()

	// Exchange ledger, optional
	var ledger relay.Recorder
	if cfg.History.Path != "" {
		l, err := history.Open(cfg.History.Path, logger)
		if err != nil {
			return fmt.Errorf("opening exchange ledger: %w", err)
		}
		defer l.Close()
		ledger = l
	}

	// Voice transcription, optional
	var transcriber relay.Transcriber
	if cfg.Transcription.Enabled {
		transcriber = transcribe.NewWhisper(cfg.Transcription.APIKey, cfg.Transcription.Model, logger)
	}

	backend := claude.New(claude.Config{
		Command:        cfg.Claude.Command,
		WorkingDir:     cfg.Claude.WorkingDir,
		MaxTurns:       cfg.Claude.MaxTurns,
		SystemPrompt:   cfg.Claude.SystemPrompt,
		PermissionMode: cfg.Claude.PermissionMode,
	}, logger)

	guard := dedupe.NewGuard(cfg.Dedupe.TTL)
	defer guard.Close()

	accessGate := gate.New(cfg.Telegram.AllowedChats, botAPI.Self.UserName, telegram.NewRoles(botAPI), logger)

	pipeline := relay.New(relay.Options{
		Gate:        accessGate,
		Sessions:    store,
		Backend:     backend,
		Transcriber: transcriber,
		Ledger:      ledger,
		Delivery:    telegram.NewSender(botAPI, logger),
		ChunkLimit:  cfg.Telegram.ChunkLimit,
		AckText:     cfg.Telegram.AckText,
		Logger:      logger,
	})

	bot := telegram.New(botAPI, botAPI.Self.UserName, pipeline, guard, cfg.Telegram.PollTimeout, logger)

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting relay")
	return bot.Run(ctx)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
