// ABOUTME: SQLite ledger of completed exchanges per session key
// ABOUTME: Append-only; queried by the /history command, never required for a reply

package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Direction labels which side of an exchange a row records.
const (
	DirectionIn  = "in"  // the user's prompt
	DirectionOut = "out" // the backend's response
)

// Entry is one recorded message.
type Entry struct {
	ID         string
	SessionKey string
	ChatID     int64
	Direction  string
	Author     string
	Text       string
	CreatedAt  time.Time
}

// Ledger is the append-only exchange record.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the ledger database at path. Parent directories
// and the schema are created as needed.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "history")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	l := &Ledger{db: db, logger: logger}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("exchange ledger opened", "path", path)
	return l, nil
}

func (l *Ledger) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS exchanges (
			id TEXT PRIMARY KEY,
			session_key TEXT NOT NULL,
			chat_id INTEGER NOT NULL,
			direction TEXT NOT NULL,
			author TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_exchanges_chat_created
			ON exchanges(chat_id, created_at);

		CREATE INDEX IF NOT EXISTS idx_exchanges_session
			ON exchanges(session_key);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Append records both sides of one completed exchange in a single
// transaction: the inbound prompt and the outbound response.
func (l *Ledger) Append(ctx context.Context, sessionKey string, chatID int64, author, prompt, response string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning ledger transaction: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO exchanges (id, session_key, chat_id, direction, author, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), sessionKey, chatID, DirectionIn, author, prompt, now); err != nil {
		return fmt.Errorf("recording prompt: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), sessionKey, chatID, DirectionOut, "assistant", response, now); err != nil {
		return fmt.Errorf("recording response: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing exchange: %w", err)
	}
	return nil
}

// Recent returns the newest limit entries for a chat, newest first.
func (l *Ledger) Recent(ctx context.Context, chatID int64, limit int) ([]Entry, error) {
	const query = `
		SELECT id, session_key, chat_id, direction, author, text, created_at
		FROM exchanges
		WHERE chat_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := l.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionKey, &e.ChatID, &e.Direction, &e.Author, &e.Text, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
