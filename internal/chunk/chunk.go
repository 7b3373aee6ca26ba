// ABOUTME: Splits long response text into transport-sized chunks
// ABOUTME: Prefers paragraph, then line, then word boundaries; hard-cuts otherwise

// Package chunk shapes outbound text to a transport's message size limit.
package chunk

import "strings"

// Split divides text into ordered chunks of at most maxLen runes each.
// Within each window the cut lands at the rightmost double line-break,
// else single line-break, else space; a window with no separator gets a
// hard cut at exactly maxLen. Separators at soft cuts are dropped and both
// sides trimmed, so rejoining the chunks with the dropped separators
// reproduces the trimmed original. Each cut strictly advances, keeping the
// whole pass O(n).
func Split(text string, maxLen int) []string {
	if maxLen < 1 {
		maxLen = 1
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= maxLen {
		return []string{string(runes)}
	}

	var chunks []string
	for len(runes) > maxLen {
		cut, sep := findCut(runes, maxLen)
		head := strings.TrimSpace(string(runes[:cut]))
		if head != "" {
			chunks = append(chunks, head)
		}
		runes = []rune(strings.TrimSpace(string(runes[cut+sep:])))
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// findCut returns the cut index within [1, maxLen] and the width of the
// separator consumed there (0 for a hard cut). A separator at index i means
// the chunk is runes[:i], so i may be at most maxLen.
func findCut(runes []rune, maxLen int) (cut, sep int) {
	// Double line-break: the pair occupies i-1 and i.
	for i := maxLen; i >= 2; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i - 1, 2
		}
	}
	for i := maxLen; i >= 1; i-- {
		if runes[i] == '\n' {
			return i, 1
		}
	}
	for i := maxLen; i >= 1; i-- {
		if runes[i] == ' ' {
			return i, 1
		}
	}
	return maxLen, 0
}
