// Package telegram is the transport layer: the long-poll update loop,
// command parsing, live admin role lookups, voice file downloads, and the
// ack-then-edit delivery pattern. It normalizes Bot API updates into relay
// events and implements the pipeline's Delivery boundary and the gate's
// RoleChecker boundary.
package telegram
