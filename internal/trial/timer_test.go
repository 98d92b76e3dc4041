package trial

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

type mockEntitlements struct {
	trial bool
	err   error
	delay time.Duration
}

func (m *mockEntitlements) IsTrial(ctx context.Context, accountID string) (bool, error) {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	return m.trial, m.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestTrialUserCappedAtLimit(t *testing.T) {
	var capFired atomic.Int32
	tm := NewTimer(&mockEntitlements{trial: true}, "acct-1", func() { capFired.Add(1) })
	tm.interval = 100 * time.Microsecond
	defer tm.Stop()

	tm.Start(context.Background())

	waitFor(t, func() bool { return capFired.Load() == 1 })
	if !tm.Capped() {
		t.Error("Capped() should report true after the cap fires")
	}
	if got := tm.SessionSeconds(); got < CapSeconds {
		t.Errorf("cap fired at %d ticks, want at least %d", got, CapSeconds)
	}

	// The halted ticker must not tick or fire again.
	ticks := tm.SessionSeconds()
	time.Sleep(20 * time.Millisecond)
	if capFired.Load() != 1 {
		t.Errorf("cap fired %d times, want exactly 1", capFired.Load())
	}
	if got := tm.SessionSeconds(); got != ticks {
		t.Errorf("ticker kept running after cap: %d -> %d", ticks, got)
	}
}

func TestNonTrialUserUnaffected(t *testing.T) {
	var capFired atomic.Int32
	tm := NewTimer(&mockEntitlements{trial: false}, "acct-2", func() { capFired.Add(1) })
	tm.interval = 100 * time.Microsecond
	defer tm.Stop()

	tm.Start(context.Background())

	waitFor(t, func() bool { return tm.SessionSeconds() > CapSeconds+50 })
	if capFired.Load() != 0 {
		t.Error("cap fired for a non-trial user")
	}
	if tm.Capped() {
		t.Error("Capped() should be false for non-trial users")
	}
}

func TestEntitlementFailureAssumesFullAccess(t *testing.T) {
	var capFired atomic.Int32
	tm := NewTimer(&mockEntitlements{err: fmt.Errorf("service down")}, "acct-3", func() { capFired.Add(1) })
	tm.interval = 100 * time.Microsecond
	defer tm.Stop()

	tm.Start(context.Background())

	waitFor(t, func() bool { return tm.SessionSeconds() > CapSeconds+50 })
	if capFired.Load() != 0 {
		t.Error("cap fired despite failed entitlement check")
	}
}

func TestPauseGatesCumulativeTicking(t *testing.T) {
	var capFired atomic.Int32
	tm := NewTimer(&mockEntitlements{trial: true}, "acct-6", func() { capFired.Add(1) })
	tm.interval = time.Millisecond
	defer tm.Stop()

	tm.Start(context.Background())
	waitFor(t, func() bool { return tm.SessionSeconds() > 10 })

	tm.Pause()
	if !tm.Paused() {
		t.Fatal("Paused() should report true after Pause")
	}
	// Let any tick already past the gate drain before sampling.
	time.Sleep(5 * time.Millisecond)
	ticks := tm.SessionSeconds()
	time.Sleep(20 * time.Millisecond)
	if got := tm.SessionSeconds(); got != ticks {
		t.Errorf("ticker advanced while paused: %d -> %d", ticks, got)
	}
	if capFired.Load() != 0 {
		t.Errorf("cap fired while paused, ticks = %d", tm.SessionSeconds())
	}

	tm.Resume()
	waitFor(t, func() bool { return tm.SessionSeconds() > ticks })
}

func TestStopIdempotent(t *testing.T) {
	tm := NewTimer(&mockEntitlements{trial: true}, "acct-4", nil)
	tm.interval = time.Millisecond

	tm.Start(context.Background())
	tm.Stop()
	tm.Stop()
	tm.Stop()

	ticks := tm.SessionSeconds()
	time.Sleep(20 * time.Millisecond)
	if got := tm.SessionSeconds(); got != ticks {
		t.Errorf("ticker still running after Stop: %d -> %d", ticks, got)
	}
}

func TestQuestionStopwatchResets(t *testing.T) {
	tm := NewTimer(nil, "acct-5", nil)
	tm.Start(context.Background())
	defer tm.Stop()

	time.Sleep(10 * time.Millisecond)
	tm.ResetQuestion()
	if got := tm.QuestionSeconds(); got != 0 {
		t.Errorf("QuestionSeconds right after reset = %d, want 0", got)
	}
}
