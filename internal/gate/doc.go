// Package gate filters inbound events before they reach the conversation
// backend. A message passes only when its chat is allow-listed, its sender
// currently holds an admin role (checked live, never cached), and — for
// plain text — it mentions the bot by name. The mention is stripped before
// the text goes downstream. Rejections are silent.
package gate
