// Package lockout implements a generic brute-force rate limiter:
// N failed attempts trigger a timed lockout with exponential backoff.
// The same tracker guards child PIN entry and voice-code approval,
// each under its own identity namespace.
//
// Attempts never decay while a record is live. Only a verified success
// clears the counter; a fresh failure after a lockout expires continues
// counting from the previous total. Records untouched for AttemptExpiry
// are garbage-collected wholesale by Sweep.
package lockout

import (
	"sync"
	"time"

	"github.com/Allow2/brave-core-sub002/sched"
)

// Config tunes a Tracker. The zero value is not valid; use
// DefaultConfig or VoiceCodeConfig as a starting point.
type Config struct {
	// Threshold is the number of consecutive failures before lockout
	// begins.
	Threshold int
	// BaseLockout is the lockout duration applied at the threshold.
	BaseLockout time.Duration
	// MaxLockout caps the exponential backoff.
	MaxLockout time.Duration
	// AttemptExpiry is how long after the last failure before the
	// whole record is garbage-collected.
	AttemptExpiry time.Duration
}

// DefaultConfig matches the PIN-entry policy: five strikes, one-minute
// lockouts.
func DefaultConfig() Config {
	return Config{
		Threshold:     5,
		BaseLockout:   time.Minute,
		MaxLockout:    15 * time.Minute,
		AttemptExpiry: time.Hour,
	}
}

// VoiceCodeConfig matches the voice-code policy: three strikes, 30s
// base, capped at five minutes.
func VoiceCodeConfig() Config {
	return Config{
		Threshold:     3,
		BaseLockout:   30 * time.Second,
		MaxLockout:    5 * time.Minute,
		AttemptExpiry: time.Hour,
	}
}

type record struct {
	failures    int
	lastFailure time.Time
	lockedUntil time.Time
}

// Tracker tracks failed authentication attempts per identity and
// enforces exponential backoff past the threshold.
type Tracker struct {
	mu      sync.Mutex
	cfg     Config
	clock   sched.Clock
	records map[string]*record
}

// New returns a Tracker with the given config, reading time from clock.
func New(cfg Config, clock sched.Clock) *Tracker {
	if clock == nil {
		clock = sched.SystemClock{}
	}
	return &Tracker{
		cfg:     cfg,
		clock:   clock,
		records: make(map[string]*record),
	}
}

// RecordFailure increments the failure counter for identity and, once
// the threshold is reached, sets or extends the lockout using
// backoff(n) = min(BaseLockout * 2^n, MaxLockout) where n counts
// failures past the threshold.
func (t *Tracker) RecordFailure(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	rec, ok := t.records[identity]
	if !ok {
		rec = &record{}
		t.records[identity] = rec
	}
	rec.failures++
	rec.lastFailure = now

	if rec.failures >= t.cfg.Threshold {
		shift := rec.failures - t.cfg.Threshold
		lockout := t.cfg.BaseLockout
		for i := 0; i < shift; i++ {
			lockout *= 2
			if lockout > t.cfg.MaxLockout {
				lockout = t.cfg.MaxLockout
				break
			}
		}
		rec.lockedUntil = now.Add(lockout)
	}
}

// RecordSuccess clears the identity's attempts and lockout atomically.
// A verified success always wins against a concurrently expiring
// lockout.
func (t *Tracker) RecordSuccess(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, identity)
}

// IsLockedOut reports whether the identity is currently locked out and
// how long remains. Pure query: it never mutates state, so countdown
// displays may poll it freely.
func (t *Tracker) IsLockedOut(identity string) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[identity]
	if !ok {
		return false, 0
	}
	now := t.clock.Now()
	if now.Before(rec.lockedUntil) {
		return true, rec.lockedUntil.Sub(now)
	}
	return false, 0
}

// Failures returns the current failure count for identity.
func (t *Tracker) Failures(identity string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[identity]
	if !ok {
		return 0
	}
	return rec.failures
}

// Sweep removes records whose last failure is older than
// AttemptExpiry. Call periodically from a background task.
func (t *Tracker) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	for id, rec := range t.records {
		if now.Sub(rec.lastFailure) > t.cfg.AttemptExpiry {
			delete(t.records, id)
		}
	}
}
