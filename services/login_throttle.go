package services

import (
	"strings"
	"sync"
	"time"
)

const ThrottleCooldownCapSeconds = 30

type throttleEntry struct {
	failCount     int
	lastFailedAt  time.Time
	cooldownUntil time.Time
}

// LoginThrottle tracks failed logins per email and enforces a growing cooldown.
type LoginThrottle struct {
	mu      sync.Mutex
	entries map[string]*throttleEntry
	now     func() time.Time
}

func NewLoginThrottle() *LoginThrottle {
	return &LoginThrottle{entries: make(map[string]*throttleEntry), now: time.Now}
}

// WaitSeconds returns how many seconds the user must wait before trying again (0 if no cooldown).
func (t *LoginThrottle) WaitSeconds(email string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[throttleKey(email)]
	if !ok {
		return 0
	}
	now := t.now()
	if now.Before(e.cooldownUntil) {
		return int(e.cooldownUntil.Sub(now).Seconds()) + 1 // round up
	}
	return 0
}

// RecordFailed increments the fail count and sets cooldown = now + min(30, 2^failCount) seconds.
func (t *LoginThrottle) RecordFailed(email string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := throttleKey(email)
	e, ok := t.entries[key]
	if !ok {
		e = &throttleEntry{}
		t.entries[key] = e
	}
	e.failCount++
	e.lastFailedAt = t.now()
	e.cooldownUntil = e.lastFailedAt.Add(time.Duration(CooldownSecondsForFailCount(e.failCount)) * time.Second)
}

// RecordSuccess resets the fail count and cooldown.
func (t *LoginThrottle) RecordSuccess(email string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, throttleKey(email))
}

// CooldownSecondsForFailCount returns min(30, 2^failCount).
func CooldownSecondsForFailCount(failCount int) int {
	if failCount < 0 {
		return 1
	}
	// 2^5 already exceeds the cap; shifting further would overflow
	if failCount >= 5 {
		return ThrottleCooldownCapSeconds
	}
	return 1 << failCount
}

func throttleKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
