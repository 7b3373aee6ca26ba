// Package history keeps a durable record of completed exchanges in SQLite.
// Two rows land per exchange: the inbound prompt and the outbound response.
// The ledger is strictly best-effort — a write failure is logged and never
// blocks or alters the user-visible reply.
package history
