// Package dedupe provides update deduplication using a time-based seen-set
// to prevent processing redelivered updates within a configurable window.
package dedupe
