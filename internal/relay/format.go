// ABOUTME: Reply formatting for session listings and history output
// ABOUTME: Presentation helpers only; nothing here mutates state

package relay

import (
	"fmt"
	"sort"
	"strings"

	"github.com/2389/skein/internal/history"
	"github.com/2389/skein/internal/session"
)

const defaultHistoryLimit = 5

// previewLen caps how much of each message the /history output shows.
const previewLen = 80

// abbrev shortens a continuation token for display.
func abbrev(token string) string {
	runes := []rune(token)
	if len(runes) <= 8 {
		return token
	}
	return string(runes[:8]) + "..."
}

// formatSummary renders the /sessions listing: the default thread, every
// named thread, and an arrow marking the active one.
func formatSummary(sender string, sum session.Summary) string {
	current := sum.Active
	if current == "" {
		current = session.DefaultName
	}

	var b strings.Builder
	b.WriteString(sender)
	b.WriteString(" 📋 Sessions:\n")

	if sum.Default != "" {
		b.WriteString(marker(current == session.DefaultName))
		b.WriteString(fmt.Sprintf("default (%s)\n", abbrev(sum.Default)))
	} else {
		b.WriteString("  default (no session)\n")
	}

	for _, name := range sortedNames(sum.Named) {
		b.WriteString(marker(current == name))
		b.WriteString(fmt.Sprintf("%s (%s)\n", name, abbrev(sum.Named[name])))
	}

	if sum.Default == "" && len(sum.Named) == 0 {
		b.WriteString("\nNo active sessions. Send a message to start one.")
	}
	return strings.TrimRight(b.String(), "\n")
}

func marker(active bool) string {
	if active {
		return "→ "
	}
	return "  "
}

func sortedNames(named map[string]string) []string {
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// formatHistory renders the /history listing, newest first.
func formatHistory(sender string, entries []history.Entry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("%s No history yet.", sender)
	}

	var b strings.Builder
	b.WriteString(sender)
	b.WriteString(" 🕘 Recent exchanges:\n")
	for _, e := range entries {
		who := e.Author
		if e.Direction == history.DirectionOut {
			who = "🤖"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", e.SessionKey, who, preview(e.Text)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func preview(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) <= previewLen {
		return text
	}
	return string(runes[:previewLen]) + "..."
}
