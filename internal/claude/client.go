// ABOUTME: Conversation backend adapter running the claude CLI in print mode
// ABOUTME: Maps prompt plus resume token to response text plus new token

package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// runner executes the CLI process; an interface so tests substitute a fake.
type runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// execRunner wraps os/exec for production use.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return stdout.Bytes(), fmt.Errorf("running %s: %s", name, detail)
	}
	return stdout.Bytes(), nil
}

// Config holds CLI invocation settings.
type Config struct {
	Command        string // binary name or path, defaults to "claude"
	WorkingDir     string // subprocess working directory
	MaxTurns       int    // 0 leaves the CLI default
	SystemPrompt   string // appended to the CLI's system prompt when set
	PermissionMode string // e.g. "bypassPermissions"
}

// Client shells out to the claude CLI for each exchange.
type Client struct {
	cfg    Config
	run    runner
	logger *slog.Logger
}

// New creates a conversation client for the configured CLI.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Command == "" {
		cfg.Command = "claude"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		run:    execRunner{},
		logger: logger.With("component", "claude"),
	}
}

// result is the CLI's --output-format json document. Only the fields the
// relay needs are decoded.
type result struct {
	Result    string `json:"result"`
	IsError   bool   `json:"is_error"`
	SessionID string `json:"session_id"`
}

// Exchange sends one prompt, resuming the backend conversation identified
// by resumeToken when non-empty. It returns the response text and the token
// for the next turn; an empty token means the backend offered no continuity.
func (c *Client) Exchange(ctx context.Context, prompt, resumeToken string) (string, string, error) {
	out, err := c.run.Run(ctx, c.cfg.WorkingDir, c.cfg.Command, c.buildArgs(prompt, resumeToken)...)
	if err != nil {
		return "", "", fmt.Errorf("conversation backend: %w", err)
	}

	var res result
	if err := json.Unmarshal(out, &res); err != nil {
		return "", "", fmt.Errorf("decoding backend response: %w", err)
	}
	if res.IsError {
		return "", "", fmt.Errorf("conversation backend: %s", strings.TrimSpace(res.Result))
	}

	c.logger.Debug("exchange complete",
		"resumed", resumeToken != "",
		"continued", res.SessionID != "",
		"length", len(res.Result),
	)
	return res.Result, res.SessionID, nil
}

func (c *Client) buildArgs(prompt, resumeToken string) []string {
	args := []string{"--print", "--output-format", "json"}
	if resumeToken != "" {
		args = append(args, "--resume", resumeToken)
	}
	if c.cfg.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(c.cfg.MaxTurns))
	}
	if c.cfg.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", c.cfg.SystemPrompt)
	}
	if c.cfg.PermissionMode != "" {
		args = append(args, "--permission-mode", c.cfg.PermissionMode)
	}
	return append(args, prompt)
}
