// Package relay walks each inbound event through the message pipeline:
//
//	Received → Gated → (rejected: terminal) | Authorized →
//	SessionResolved → Exchanged → Chunked → Delivered
//
// The early acknowledgment fires right after authorization, before the
// backend exchange, so a slow external call never leaves the user without
// feedback. A backend failure delivers a single error notice and stops —
// no automatic retry; the human re-sends. Voice events insert a
// transcription step between authorization and session resolution.
//
// Failure policy: the continuation token is written only after a fully
// successful exchange, so external-call failures never corrupt session
// state; persistence and ledger failures are logged and never block the
// user-visible reply. Nothing here is fatal to the process.
package relay
