// Package breaker implements the per-process circuit breaker state machine
// that protects against restart storms.
package breaker

import (
	"sync"
	"time"

	"github.com/healerd/healer/internal/spec"
)

// State is one of Closed, Open, HalfOpen.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker is a single process's breaker, guarding recovery attempts with a
// sliding failure window. Safe for concurrent use, though
// notes the Healer is single-consumer and so in practice serializes access.
type Breaker struct {
	mu       sync.Mutex
	state    State
	until    time.Time
	failures []time.Time
	retries  int
	window   time.Duration
	cooldown time.Duration
}

// New builds a Breaker in the Closed state from a RecoverySpec.
func New(r spec.RecoverySpec) *Breaker {
	return &Breaker{
		state:    Closed,
		retries:  r.Retries,
		window:   time.Duration(r.RetryWindowSecs) * time.Second,
		cooldown: time.Duration(r.CooldownSecs) * time.Second,
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a recovery attempt may proceed at instant now, and
// whether that attempt should be treated as a HalfOpen probe.
func (b *Breaker) Allow(now time.Time) (allowed bool, probing bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed:
		return true, false
	case Open:
		if now.Before(b.until) {
			return false, false
		}
		b.state = HalfOpen
		return true, true
	case HalfOpen:
		return true, true
	default:
		return true, false
	}
}

// RecordSuccess closes the breaker and clears the failure ring when the
// successful attempt was a HalfOpen probe (or the breaker was already
// HalfOpen for any other reason).
func (b *Breaker) RecordSuccess(probing bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if probing || b.state == HalfOpen {
		b.state = Closed
		b.failures = b.failures[:0]
	}
}

// RecordFailure appends a failure timestamp, evicts entries older than the
// retry window, and opens the breaker if the ring has reached retries.
// Returns true if this call transitioned the breaker to Open.
func (b *Breaker) RecordFailure(now time.Time) (openedNow bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, now)
	b.evictLocked(now)
	if b.retries > 0 && len(b.failures) >= b.retries {
		b.state = Open
		b.until = now.Add(b.cooldown)
		return true
	}
	return false
}

func (b *Breaker) evictLocked(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.failures) && b.failures[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.failures = b.failures[i:]
	}
}
