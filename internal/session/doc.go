// Package session tracks which backend conversation each chat message
// belongs to.
//
// # Keys
//
// A Key pairs a chat id with an optional thread name. Every chat has one
// default (unnamed) thread and any number of named threads; two chats may
// reuse a name independently. The colon-joined string form ("100",
// "100:debug") appears only in the persisted file and the exchange ledger.
//
// # Store
//
// The Store is the single owner of all session state:
//
//   - continuation tokens, one per key, written only after a fully
//     successful exchange
//   - active pointers, at most one per chat, naming the thread that
//     unqualified messages route to
//
// State is persisted as one human-editable JSON document, rewritten whole
// after every mutation via a temp-file-and-rename so the two maps can never
// drift apart on disk. Loading fails soft: a missing or damaged file starts
// the process with a clean slate.
//
// A failed write returns an error wrapping ErrPersist. Memory remains
// authoritative; callers log the warning and carry on, and the next
// successful write reconciles the file.
package session
