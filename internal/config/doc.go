// Package config handles configuration loading for skein-telegram.
//
// # Overview
//
// Configuration is loaded from a TOML file with environment variable
// expansion. The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from SKEIN_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/skein/skein.toml
//  3. ~/.config/skein/skein.toml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	[telegram]
//	token = "${SKEIN_BOT_TOKEN}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Transport:
//
//	[telegram]
//	token = "${SKEIN_BOT_TOKEN}"
//	allowed_chats = [100200300]
//	ack_text = "🤔 Thinking..."   # early acknowledgment placeholder
//	chunk_limit = 4096            # max outbound message length
//	poll_timeout = 60             # long-poll timeout, seconds
//
// Conversation backend:
//
//	[claude]
//	command = "claude"
//	working_dir = "/home/bot/work"
//	max_turns = 10
//	system_prompt = ""
//	permission_mode = "bypassPermissions"
//
// Voice transcription:
//
//	[transcription]
//	enabled = true
//	api_key = "${OPENAI_API_KEY}"
//	model = "whisper-1"
//
// Persistence:
//
//	[sessions]
//	path = "/var/lib/skein/sessions.json"
//
//	[history]
//	path = "/var/lib/skein/history.db"   # empty disables the ledger
//
// Replay guard and logging:
//
//	[dedupe]
//	ttl = "10m"
//
//	[logging]
//	level = "info"   # debug, info, warn, error
package config
