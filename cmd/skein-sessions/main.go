// ABOUTME: Operator CLI for inspecting the skein session file
// ABOUTME: Lists stored conversation threads and drops stale ones

package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/fatih/color"

	"github.com/2389/skein/internal/session"
)

const usage = `skein-sessions - inspect and prune the session file

Usage:
  skein-sessions -file <path> list
  skein-sessions -file <path> drop <key>

Commands:
  list         Show every stored session and active pointer (default)
  drop <key>   Delete the record for a session key, e.g. "100" or "100:debug"
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	path := "sessions.json"
	var rest []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-file", "--file":
			if i+1 >= len(args) {
				return fmt.Errorf("-file requires a path")
			}
			i++
			path = args[i]
		case "-h", "--help", "help":
			fmt.Print(usage)
			return nil
		default:
			rest = append(rest, args[i])
		}
	}

	// The CLI only inspects; keep the log output out of the way.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("session file %s: %w", path, err)
	}
	store := session.Open(path, logger)

	cmd := "list"
	if len(rest) > 0 {
		cmd = rest[0]
	}

	switch cmd {
	case "list":
		return list(store)
	case "drop":
		if len(rest) < 2 {
			return fmt.Errorf("drop requires a session key")
		}
		return drop(store, rest[1])
	default:
		fmt.Print(usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func list(store *session.Store) error {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)

	chats := store.Chats()
	if len(chats) == 0 {
		fmt.Println("No stored sessions.")
		return nil
	}

	for _, chatID := range chats {
		sum := store.List(chatID)
		bold.Printf("chat %d\n", chatID)

		if sum.Default != "" {
			printEntry(green, sum.Active == "", session.DefaultName, sum.Default)
		}
		names := make([]string, 0, len(sum.Named))
		for name := range sum.Named {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			printEntry(green, sum.Active == name, name, sum.Named[name])
		}
	}
	return nil
}

func printEntry(active *color.Color, isActive bool, name, token string) {
	marker := "  "
	if isActive {
		marker = "→ "
	}
	short := token
	if len(short) > 12 {
		short = short[:12] + "..."
	}
	if isActive {
		active.Printf("  %s%-16s %s\n", marker, name, short)
	} else {
		fmt.Printf("  %s%-16s %s\n", marker, name, short)
	}
}

func drop(store *session.Store, keyStr string) error {
	key, err := session.ParseKey(keyStr)
	if err != nil {
		return err
	}
	removed, err := store.Drop(key)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no record for key %q", key.String())
	}
	fmt.Printf("Dropped %s\n", key.String())
	return nil
}
