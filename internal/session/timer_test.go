package session

import (
	"testing"
	"time"
)

func TestTimerRemainingDerivedFromDeadline(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	timer := NewTimerController(start, 10*time.Minute, time.Minute, nil, nil)

	if got := timer.Remaining(start.Add(4 * time.Minute)); got != 6*time.Minute {
		t.Errorf("Remaining at T+4m = %v, want 6m", got)
	}
	if got := timer.Remaining(start.Add(11 * time.Minute)); got != 0 {
		t.Errorf("Remaining past deadline = %v, want 0", got)
	}
}

// 会话重建后截止时刻不变：同一开始时间构造的计时器给出相同剩余时间
func TestTimerStableAcrossReconstruction(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := NewTimerController(start, 10*time.Minute, time.Minute, nil, nil)
	rebuilt := NewTimerController(start, 10*time.Minute, time.Minute, nil, nil)

	at := start.Add(7 * time.Minute)
	if first.Remaining(at) != rebuilt.Remaining(at) {
		t.Errorf("rebuilt timer drifted: %v vs %v", first.Remaining(at), rebuilt.Remaining(at))
	}
	if !first.Deadline().Equal(rebuilt.Deadline()) {
		t.Errorf("deadlines differ: %v vs %v", first.Deadline(), rebuilt.Deadline())
	}
}

func TestTimerNoLimitReturnsNil(t *testing.T) {
	if timer := NewTimerController(time.Now(), 0, time.Minute, nil, nil); timer != nil {
		t.Error("expected nil timer when no time limit")
	}
}

func TestTimerExpireFiresExactlyOnce(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fired := 0
	timer := NewTimerController(start, 5*time.Minute, time.Minute, nil, func() { fired++ })

	timer.Tick(start.Add(4 * time.Minute))
	if fired != 0 {
		t.Fatal("expired before deadline")
	}

	timer.Tick(start.Add(5 * time.Minute))
	timer.Tick(start.Add(6 * time.Minute))
	timer.Tick(start.Add(7 * time.Minute))
	if fired != 1 {
		t.Errorf("expire fired %d times, want exactly 1", fired)
	}
}

func TestTimerWarningFiresOnceInsideWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var warnings []time.Duration
	timer := NewTimerController(start, 5*time.Minute, time.Minute,
		func(remaining time.Duration) { warnings = append(warnings, remaining) }, func() {})

	timer.Tick(start.Add(3 * time.Minute))
	if len(warnings) != 0 {
		t.Fatal("warned outside the warning window")
	}

	timer.Tick(start.Add(4*time.Minute + 10*time.Second))
	timer.Tick(start.Add(4*time.Minute + 30*time.Second))
	if len(warnings) != 1 {
		t.Errorf("warning fired %d times, want 1", len(warnings))
	}
	if warnings[0] != 50*time.Second {
		t.Errorf("warning remaining = %v, want 50s", warnings[0])
	}
}

// 恢复到已过期的会话：首个 Tick 立即触发到期
func TestTimerExpiredOnResume(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fired := false
	timer := NewTimerController(start, 5*time.Minute, time.Minute, nil, func() { fired = true })

	timer.Tick(start.Add(30 * time.Minute))
	if !fired {
		t.Error("expected immediate expiry on first tick past deadline")
	}
}
