// Package claude adapts the claude CLI into the relay's conversation
// backend boundary: one subprocess invocation per exchange, JSON output,
// with the returned session id serving as the continuation token.
package claude
