package services

import (
	"testing"
	"time"
)

func TestCooldownSecondsForFailCount(t *testing.T) {
	tests := []struct {
		failCount int
		want      int
	}{
		{0, 1},   // 2^0=1
		{1, 2},   // 2^1=2
		{2, 4},   // 2^2=4
		{3, 8},   // 2^3=8
		{4, 16},  // 2^4=16
		{5, 30},  // 2^5=32 -> cap 30
		{6, 30},  // 2^6=64 -> cap 30
		{10, 30}, // cap 30
		{63, 30},
		{64, 30},
		{100, 30},
	}
	for _, tt := range tests {
		got := CooldownSecondsForFailCount(tt.failCount)
		if got != tt.want {
			t.Errorf("CooldownSecondsForFailCount(%d) = %d, want %d", tt.failCount, got, tt.want)
		}
	}
}

func TestLoginThrottle(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	th := NewLoginThrottle()
	th.now = func() time.Time { return now }
	const email = "Asha@Example.com"

	// 1) No history, no wait
	if wait := th.WaitSeconds(email); wait != 0 {
		t.Errorf("fresh: wait = %d, want 0", wait)
	}

	// 2) Failed attempt sets cooldown
	th.RecordFailed(email)
	wait := th.WaitSeconds(email)
	if wait < 1 || wait > 3 {
		t.Errorf("after 1 fail: wait = %d, want 1..3", wait)
	}

	// 3) Key is case- and space-insensitive
	if w := th.WaitSeconds("  asha@example.com "); w != wait {
		t.Errorf("normalized email wait = %d, want %d", w, wait)
	}

	// 4) Second failure doubles the cooldown
	th.RecordFailed(email)
	if wait := th.WaitSeconds(email); wait != 5 {
		t.Errorf("after 2 fails: wait = %d, want 5", wait)
	}

	// 5) Cooldown expires with time
	now = now.Add(5 * time.Second)
	if wait := th.WaitSeconds(email); wait != 0 {
		t.Errorf("after cooldown: wait = %d, want 0", wait)
	}

	// 6) Cap at 30 seconds
	for i := 0; i < 8; i++ {
		th.RecordFailed(email)
	}
	if wait := th.WaitSeconds(email); wait != ThrottleCooldownCapSeconds+1 {
		t.Errorf("capped: wait = %d, want %d", wait, ThrottleCooldownCapSeconds+1)
	}

	// 7) Long runs of failures stay capped
	for i := 0; i < 100; i++ {
		th.RecordFailed(email)
	}
	if wait := th.WaitSeconds(email); wait != ThrottleCooldownCapSeconds+1 {
		t.Errorf("after 110 fails: wait = %d, want %d", wait, ThrottleCooldownCapSeconds+1)
	}

	// 8) Success resets
	th.RecordSuccess(email)
	if wait := th.WaitSeconds(email); wait != 0 {
		t.Errorf("after success: wait = %d, want 0", wait)
	}
}
