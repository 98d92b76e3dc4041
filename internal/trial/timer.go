// Package trial enforces the cumulative time cap applied to trial users
// during practice sessions and tracks per-question elapsed time.
package trial

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CapSeconds is the cumulative practice time allowed on a trial.
const CapSeconds = 300

// Entitlements answers whether the account is on a time-boxed trial. It is
// an external service; the check runs asynchronously and a failed check is
// treated as "not a trial" so paying users are never cut off by an outage.
type Entitlements interface {
	IsTrial(ctx context.Context, accountID string) (bool, error)
}

// Timer runs two clocks for one session: a per-question stopwatch and a
// cumulative per-second ticker. When the cumulative count reaches CapSeconds
// and the account is a confirmed trial, the ticker halts and onCap fires
// exactly once.
type Timer struct {
	entitlements Entitlements
	accountID    string
	onCap        func()
	interval     time.Duration

	mu              sync.Mutex
	running         bool
	paused          bool
	capped          bool
	trial           bool
	trialConfirmed  bool
	sessionSeconds  int
	questionStarted time.Time
	cancel          context.CancelFunc
}

// NewTimer creates a Timer for the given account. onCap is invoked from the
// ticker goroutine when the trial cap is reached; it must not block.
func NewTimer(entitlements Entitlements, accountID string, onCap func()) *Timer {
	return &Timer{
		entitlements: entitlements,
		accountID:    accountID,
		onCap:        onCap,
		interval:     time.Second,
	}
}

// Start begins both clocks. The trial status check runs in the background;
// until it confirms a trial, the cap is not enforced.
func (t *Timer) Start(ctx context.Context) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.running = true
	t.questionStarted = time.Now()
	t.mu.Unlock()

	go t.checkTrial(runCtx)
	go t.tick(runCtx)
}

func (t *Timer) checkTrial(ctx context.Context) {
	if t.entitlements == nil {
		return
	}
	isTrial, err := t.entitlements.IsTrial(ctx, t.accountID)
	if err != nil {
		slog.Warn("entitlement check failed, assuming full access", "error", err)
		return
	}
	t.mu.Lock()
	t.trial = isTrial
	t.trialConfirmed = true
	t.mu.Unlock()
}

func (t *Timer) tick(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		t.mu.Lock()
		if !t.running {
			t.mu.Unlock()
			return
		}
		if t.paused {
			t.mu.Unlock()
			continue
		}
		t.sessionSeconds++
		reached := t.trialConfirmed && t.trial && !t.capped && t.sessionSeconds >= CapSeconds
		if reached {
			t.capped = true
			t.running = false
		}
		t.mu.Unlock()

		if reached {
			slog.Info("trial time cap reached", "seconds", CapSeconds)
			if t.onCap != nil {
				t.onCap()
			}
			return
		}
	}
}

// Pause suspends cumulative ticking while an answer is being processed, so
// grading latency never counts against the trial cap. The ticker goroutine
// keeps running; ticks are simply discarded until Resume.
func (t *Timer) Pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

// Resume re-enables cumulative ticking after a Pause.
func (t *Timer) Resume() {
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()
}

// Paused reports whether cumulative ticking is currently suspended.
func (t *Timer) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// ResetQuestion restarts the per-question stopwatch at a question boundary.
func (t *Timer) ResetQuestion() {
	t.mu.Lock()
	t.questionStarted = time.Now()
	t.mu.Unlock()
}

// QuestionSeconds returns whole seconds elapsed on the current question.
func (t *Timer) QuestionSeconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.questionStarted.IsZero() {
		return 0
	}
	return int(time.Since(t.questionStarted).Seconds())
}

// SessionSeconds returns the cumulative seconds ticked so far.
func (t *Timer) SessionSeconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionSeconds
}

// Capped reports whether the trial cap has fired.
func (t *Timer) Capped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.capped
}

// Stop halts both clocks. Idempotent and safe in any teardown order.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.running = false
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
