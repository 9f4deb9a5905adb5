package api

import (
	"math"
	"sync"
	"time"
)

const (
	signupWindow       = time.Hour
	signupMaxAttempts  = 5
	signupCooldown     = 60 * time.Second
	verifyMaxFailures  = 5
	verifyLockDuration = 15 * time.Minute
	verifyIdleReset    = 15 * time.Minute

	limiterCleanupInterval = time.Minute
)

// retryAfterSeconds converts a wait duration to a Retry-After value, rounding
// up and never returning less than one second.
func retryAfterSeconds(wait time.Duration) int {
	if wait <= 0 {
		return 1
	}
	return int(math.Ceil(wait.Seconds()))
}

type signupEntry struct {
	count       int
	lastAttempt time.Time
}

// SignupLimiter throttles signup initiations per email: a sliding window that
// resets after an hour of inactivity, at most five attempts per window, and a
// 60-second cooldown between consecutive attempts. All decisions are
// wall-clock comparisons at call time; entries are swept for memory hygiene.
type SignupLimiter struct {
	mu      sync.Mutex
	entries map[string]*signupEntry
	cleanup time.Time
}

func NewSignupLimiter() *SignupLimiter {
	return &SignupLimiter{
		entries: make(map[string]*signupEntry),
		cleanup: time.Now(),
	}
}

// Check reports whether an attempt for email is allowed right now, and if not
// how long to wait.
func (l *SignupLimiter) Check(email string) (allowed bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.sweep(now)

	e, ok := l.entries[email]
	if !ok || now.Sub(e.lastAttempt) > signupWindow {
		return true, 0
	}

	if wait := signupCooldown - now.Sub(e.lastAttempt); wait > 0 {
		return false, wait
	}

	if e.count >= signupMaxAttempts {
		return false, signupWindow - now.Sub(e.lastAttempt)
	}

	return true, 0
}

// Record counts an attempt for email.
func (l *SignupLimiter) Record(email string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	e, ok := l.entries[email]
	if !ok || now.Sub(e.lastAttempt) > signupWindow {
		l.entries[email] = &signupEntry{count: 1, lastAttempt: now}
		return
	}

	e.count++
	e.lastAttempt = now
}

func (l *SignupLimiter) sweep(now time.Time) {
	if now.Sub(l.cleanup) < limiterCleanupInterval {
		return
	}
	for email, e := range l.entries {
		if now.Sub(e.lastAttempt) > signupWindow {
			delete(l.entries, email)
		}
	}
	l.cleanup = now
}

type verifyEntry struct {
	failures    int
	lastAttempt time.Time
	lockUntil   time.Time
}

// VerifyLimiter locks an email out of code verification for fifteen minutes
// after five consecutive failures. A success clears the counter immediately;
// the counter also resets after fifteen minutes of inactivity.
type VerifyLimiter struct {
	mu      sync.Mutex
	entries map[string]*verifyEntry
	cleanup time.Time
}

func NewVerifyLimiter() *VerifyLimiter {
	return &VerifyLimiter{
		entries: make(map[string]*verifyEntry),
		cleanup: time.Now(),
	}
}

// Check reports whether a verification attempt for email is allowed, and if
// the email is locked, how long until the lock lifts.
func (l *VerifyLimiter) Check(email string) (allowed, locked bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.sweep(now)

	e, ok := l.entries[email]
	if !ok {
		return true, false, 0
	}

	if now.Before(e.lockUntil) {
		return false, true, e.lockUntil.Sub(now)
	}

	if now.Sub(e.lastAttempt) > verifyIdleReset {
		delete(l.entries, email)
		return true, false, 0
	}

	return true, false, 0
}

// Record counts the outcome of a verification attempt. A success clears all
// state for the email.
func (l *VerifyLimiter) Record(email string, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if success {
		delete(l.entries, email)
		return
	}

	now := time.Now()
	e, ok := l.entries[email]
	if !ok || now.Sub(e.lastAttempt) > verifyIdleReset {
		e = &verifyEntry{}
		l.entries[email] = e
	}

	e.failures++
	e.lastAttempt = now
	if e.failures >= verifyMaxFailures {
		e.lockUntil = now.Add(verifyLockDuration)
		e.failures = 0
	}
}

func (l *VerifyLimiter) sweep(now time.Time) {
	if now.Sub(l.cleanup) < limiterCleanupInterval {
		return
	}
	for email, e := range l.entries {
		if now.After(e.lockUntil) && now.Sub(e.lastAttempt) > verifyIdleReset {
			delete(l.entries, email)
		}
	}
	l.cleanup = now
}
