// ABOUTME: Replay guard for inbound update ids
// ABOUTME: TTL-based seen-set so redelivered updates are processed exactly once

package dedupe

import (
	"sync"
	"time"
)

// Guard tracks recently-seen update ids. Telegram redelivers updates when
// the process restarts before committing its long-poll offset; the guard
// drops the replays inside the TTL window.
type Guard struct {
	mu     sync.Mutex
	seen   map[int64]time.Time
	ttl    time.Duration
	done   chan struct{}
	closed bool
}

// NewGuard creates a guard with the given TTL. A background goroutine
// sweeps expired entries periodically.
func NewGuard(ttl time.Duration) *Guard {
	g := &Guard{
		seen: make(map[int64]time.Time),
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go g.sweep()
	return g
}

// Seen atomically records the update id, reporting whether it was already
// present within the TTL window. Checking and marking are one critical
// section so concurrent handlers cannot both claim a fresh id.
func (g *Guard) Seen(id int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if at, ok := g.seen[id]; ok && time.Since(at) < g.ttl {
		return true
	}
	g.seen[id] = time.Now()
	return false
}

// sweep removes expired entries so the map does not grow without bound.
func (g *Guard) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.expire()
		case <-g.done:
			return
		}
	}
}

func (g *Guard) expire() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for id, at := range g.seen {
		if now.Sub(at) > g.ttl {
			delete(g.seen, id)
		}
	}
}

// Close stops the sweep goroutine. Safe to call more than once.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.closed {
		close(g.done)
		g.closed = true
	}
}
