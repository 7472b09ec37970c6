package guard

import (
	"sync"
	"time"
)

// Breaker is the process-wide circuit state shared by every guard-wrapped
// upstream call. It is an explicitly constructed value handed to each
// consumer, never a package global, so tests get isolated instances.
//
// Races on trip/clear are benign: the worst case is a handful of requests
// choosing the fallback path a few milliseconds early or late.
type Breaker struct {
	mu      sync.Mutex
	tripped bool
	rearmAt time.Time
	reason  string
}

func NewBreaker() *Breaker { return &Breaker{} }

// Trip opens the breaker for cooldown. Returns true only on the transition
// from closed to open; callers use that to fire the one-time operator alert.
func (b *Breaker) Trip(reason string, cooldown time.Duration, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tripped && now.Before(b.rearmAt) {
		return false
	}
	b.tripped = true
	b.rearmAt = now.Add(cooldown)
	b.reason = reason
	return true
}

// Open reports whether the breaker is currently open, clearing it once the
// cool-down window has elapsed.
func (b *Breaker) Open(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.tripped {
		return false
	}
	if now.Before(b.rearmAt) {
		return true
	}
	b.tripped = false
	b.reason = ""
	return false
}

// State returns a snapshot for health reporting.
func (b *Breaker) State() (tripped bool, rearmAt time.Time, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped, b.rearmAt, b.reason
}
