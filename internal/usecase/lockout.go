package usecase

import (
	"sync"
	"time"
)

// LockoutTracker records consecutive failed login attempts per identity.
// Lockout is time-windowed: once the window has elapsed since the last
// failure the identity is implicitly unlocked, no explicit reset required.
type LockoutTracker struct {
	mu        sync.Mutex
	attempts  map[string]*loginAttemptRecord
	threshold int
	window    time.Duration
	now       func() time.Time
}

type loginAttemptRecord struct {
	failures    int
	lastFailure time.Time
}

// NewLockoutTracker creates a tracker with the given failure threshold and
// lockout window (defaults: 5 attempts, 15 minutes).
func NewLockoutTracker(threshold int, window time.Duration) *LockoutTracker {
	if threshold <= 0 {
		threshold = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &LockoutTracker{
		attempts:  map[string]*loginAttemptRecord{},
		threshold: threshold,
		window:    window,
		now:       time.Now,
	}
}

// RecordFailure increments the failure counter and stamps the failure time.
func (t *LockoutTracker) RecordFailure(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.attempts[identity]
	if !ok {
		rec = &loginAttemptRecord{}
		t.attempts[identity] = rec
	}
	rec.failures++
	rec.lastFailure = t.now()
}

// IsLockedOut reports whether the identity has reached the failure threshold
// within the lockout window. Stale records are dropped on the way.
func (t *LockoutTracker) IsLockedOut(identity string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.attempts[identity]
	if !ok {
		return false
	}
	if t.now().Sub(rec.lastFailure) >= t.window {
		delete(t.attempts, identity)
		return false
	}
	return rec.failures >= t.threshold
}

// Clear removes the record entirely, called on successful login.
func (t *LockoutTracker) Clear(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, identity)
}
