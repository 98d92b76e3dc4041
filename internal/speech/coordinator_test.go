package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// --- mock engines ---

type mockSynth struct {
	mu      sync.Mutex
	voices  []Voice
	spoken  []string
	lastVox Voice
	cancels atomic.Int32
	// script decides what events an utterance emits; default is Ended.
	script func(text string, onEvent func(Event))
}

func (m *mockSynth) Voices(context.Context) ([]Voice, error) {
	return m.voices, nil
}

func (m *mockSynth) Speak(_ context.Context, voice Voice, text string, onEvent func(Event)) error {
	m.mu.Lock()
	m.spoken = append(m.spoken, text)
	m.lastVox = voice
	m.mu.Unlock()
	if m.script != nil {
		m.script(text, onEvent)
		return nil
	}
	onEvent(Event{Kind: EventStarted})
	onEvent(Event{Kind: EventEnded})
	return nil
}

func (m *mockSynth) Cancel() { m.cancels.Add(1) }

type mockRecognizer struct {
	mu      sync.Mutex
	starts  int
	stops   int
	onStart func(run int, onEvent func(Event))
}

func (m *mockRecognizer) Start(_ context.Context, onEvent func(Event)) error {
	m.mu.Lock()
	m.starts++
	run := m.starts
	m.mu.Unlock()
	if m.onStart != nil {
		m.onStart(run, onEvent)
	}
	return nil
}

func (m *mockRecognizer) Stop() {
	m.mu.Lock()
	m.stops++
	m.mu.Unlock()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// --- playback ---

func TestPlayResolvesDoneOnce(t *testing.T) {
	synth := &mockSynth{}
	c := NewCoordinator(synth, &mockRecognizer{}, nil)

	var calls atomic.Int32
	c.Play(context.Background(), "hello", func(err error) {
		calls.Add(1)
	})

	waitFor(t, func() bool { return calls.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("done called %d times, want exactly 1", got)
	}
	if c.Snapshot().IsSpeaking {
		t.Error("IsSpeaking should be false after completion")
	}
}

func TestPlayErrorResolvesLikeEnd(t *testing.T) {
	synth := &mockSynth{
		script: func(text string, onEvent func(Event)) {
			onEvent(Event{Kind: EventStarted})
			onEvent(Event{Kind: EventError, Err: fmt.Errorf("device busy")})
		},
	}
	c := NewCoordinator(synth, &mockRecognizer{}, nil)

	var done atomic.Int32
	var gotErr atomic.Value
	c.Play(context.Background(), "hello", func(err error) {
		if err != nil {
			gotErr.Store(err)
		}
		done.Add(1)
	})

	waitFor(t, func() bool { return done.Load() == 1 })
	if gotErr.Load() != nil {
		t.Errorf("engine error should fail open, got %v", gotErr.Load())
	}
}

func TestPlayCancelsPreviousUtterance(t *testing.T) {
	// First utterance never completes on its own.
	synth := &mockSynth{script: func(string, func(Event)) {}}
	c := NewCoordinator(synth, &mockRecognizer{}, nil)

	var firstDone, secondDone atomic.Int32
	c.Play(context.Background(), "first", func(error) { firstDone.Add(1) })
	c.Play(context.Background(), "second", func(error) { secondDone.Add(1) })

	// The second Play resolves the first utterance's completion.
	waitFor(t, func() bool { return firstDone.Load() == 1 })
	if synth.cancels.Load() < 2 {
		t.Errorf("expected cancel before each speak, got %d", synth.cancels.Load())
	}
	if secondDone.Load() != 0 {
		t.Error("second utterance should still be pending")
	}
}

func TestCancelledPlaybackReportsCancellation(t *testing.T) {
	// The utterance never completes on its own; only the cancel resolves it.
	synth := &mockSynth{script: func(string, func(Event)) {}}
	c := NewCoordinator(synth, &mockRecognizer{}, nil)

	var done atomic.Int32
	var gotErr atomic.Value
	c.Play(context.Background(), "hello", func(err error) {
		if err != nil {
			gotErr.Store(err)
		}
		done.Add(1)
	})
	c.CancelPlayback()

	waitFor(t, func() bool { return done.Load() == 1 })
	err, _ := gotErr.Load().(error)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled playback resolved with %v, want context.Canceled", err)
	}
}

func TestSupersededPlaybackReportsCancellation(t *testing.T) {
	synth := &mockSynth{script: func(string, func(Event)) {}}
	c := NewCoordinator(synth, &mockRecognizer{}, nil)

	var gotErr atomic.Value
	var firstDone atomic.Int32
	c.Play(context.Background(), "first", func(err error) {
		if err != nil {
			gotErr.Store(err)
		}
		firstDone.Add(1)
	})
	c.Play(context.Background(), "second", func(error) {})

	waitFor(t, func() bool { return firstDone.Load() == 1 })
	err, _ := gotErr.Load().(error)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("superseded playback resolved with %v, want context.Canceled", err)
	}
}

func TestSelectVoicePreferenceOrder(t *testing.T) {
	voices := []Voice{
		{Name: "nl-standard", Lang: "nl-NL"},
		{Name: "en-warm", Lang: "en-US"},
		{Name: "en-crisp", Lang: "en-GB"},
		{Name: "fallback", Lang: "fr-FR", Default: true},
	}

	cases := []struct {
		name  string
		prefs []string
		avail []Voice
		want  string
	}{
		{"ranked preference wins", []string{"en-crisp", "en-warm"}, voices, "en-crisp"},
		{"second preference", []string{"missing", "en-warm"}, voices, "en-warm"},
		{"english fallback", []string{"missing"}, voices, "en-warm"},
		{"default fallback", nil, []Voice{{Name: "a", Lang: "fr"}, {Name: "b", Lang: "de", Default: true}}, "b"},
		{"first voice fallback", nil, []Voice{{Name: "only", Lang: "fr"}}, "only"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCoordinator(&mockSynth{voices: tc.avail}, &mockRecognizer{}, tc.prefs)
			if got := c.selectVoice(context.Background()); got.Name != tc.want {
				t.Errorf("selectVoice = %q, want %q", got.Name, tc.want)
			}
		})
	}
}

// --- capture ---

func TestCaptureAccumulatesFinalsOverwritesInterims(t *testing.T) {
	rec := &mockRecognizer{
		onStart: func(run int, onEvent func(Event)) {
			onEvent(Event{Kind: EventStarted})
			onEvent(Event{Kind: EventInterim, Text: "I wor"})
			onEvent(Event{Kind: EventFinal, Text: "I worked on"})
			onEvent(Event{Kind: EventInterim, Text: "a proj"})
			onEvent(Event{Kind: EventFinal, Text: "a project"})
		},
	}
	c := NewCoordinator(&mockSynth{}, rec, nil)
	c.StartCapture(context.Background())

	if got := c.Transcript(); got != "I worked on a project" {
		t.Errorf("transcript = %q", got)
	}
	if interim := c.Snapshot().InterimTranscript; interim != "" {
		t.Errorf("interim should be cleared by final result, got %q", interim)
	}
}

func TestCaptureSelfHealing(t *testing.T) {
	// Engine dies once mid-capture, then works.
	rec := &mockRecognizer{}
	rec.onStart = func(run int, onEvent func(Event)) {
		if run == 1 {
			onEvent(Event{Kind: EventError, Err: fmt.Errorf("mic glitch")})
			return
		}
		onEvent(Event{Kind: EventFinal, Text: "recovered"})
	}

	c := NewCoordinator(&mockSynth{}, rec, nil)
	c.StartCapture(context.Background())

	if got := c.Transcript(); got != "recovered" {
		t.Errorf("transcript = %q, want %q", got, "recovered")
	}
	if !c.Snapshot().IsRecording {
		t.Error("capture should still be active after self-heal")
	}
}

func TestCaptureRestartCap(t *testing.T) {
	// Engine always fails; the loop must give up instead of spinning forever.
	rec := &mockRecognizer{}
	rec.onStart = func(run int, onEvent func(Event)) {
		onEvent(Event{Kind: EventError, Err: fmt.Errorf("permanent failure")})
	}

	c := NewCoordinator(&mockSynth{}, rec, nil)
	c.StartCapture(context.Background())

	rec.mu.Lock()
	starts := rec.starts
	rec.mu.Unlock()
	if starts != maxCaptureRestarts+1 {
		t.Errorf("engine started %d times, want %d (initial + capped restarts)", starts, maxCaptureRestarts+1)
	}
	if c.Snapshot().IsRecording {
		t.Error("capture should be idle after giving up")
	}
}

func TestStopCaptureSuppressesRestart(t *testing.T) {
	var emit func(Event)
	rec := &mockRecognizer{
		onStart: func(run int, onEvent func(Event)) { emit = onEvent },
	}
	c := NewCoordinator(&mockSynth{}, rec, nil)
	c.StartCapture(context.Background())
	c.StopCapture()

	// A late engine "ended" event after Stop must not restart capture.
	emit(Event{Kind: EventEnded})

	rec.mu.Lock()
	starts := rec.starts
	rec.mu.Unlock()
	if starts != 1 {
		t.Errorf("engine restarted after explicit stop: %d starts", starts)
	}
}

func TestStopAllIdempotent(t *testing.T) {
	c := NewCoordinator(&mockSynth{}, &mockRecognizer{}, nil)
	c.StartCapture(context.Background())

	// Any order, any number of times.
	c.StopAll()
	c.StopCapture()
	c.CancelPlayback()
	c.StopAll()

	st := c.Snapshot()
	if st.IsRecording || st.IsSpeaking {
		t.Errorf("state not fully stopped: %+v", st)
	}
}

func TestResetTranscript(t *testing.T) {
	rec := &mockRecognizer{
		onStart: func(run int, onEvent func(Event)) {
			onEvent(Event{Kind: EventFinal, Text: "old answer"})
		},
	}
	c := NewCoordinator(&mockSynth{}, rec, nil)
	c.StartCapture(context.Background())
	c.StopCapture()
	c.ResetTranscript()

	if got := c.Transcript(); got != "" {
		t.Errorf("transcript after reset = %q, want empty", got)
	}
}
