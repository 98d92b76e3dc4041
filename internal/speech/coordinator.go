package speech

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// settleDelay gives the audio device a moment between cancelling the
// previous utterance and starting the next one.
const settleDelay = 150 * time.Millisecond

// maxCaptureRestarts bounds the self-healing capture loop. Engines that die
// this many times in a row without producing a final result stay stopped.
const maxCaptureRestarts = 5

// captureState tracks the capture side of the coordinator.
type captureState int

const (
	captureIdle captureState = iota
	captureListening
	captureStopping
)

// State is the transient, non-persisted speech state for one question's
// playback/capture cycle.
type State struct {
	IsSpeaking        bool
	IsRecording       bool
	Transcript        string
	InterimTranscript string
}

// Coordinator owns one synthesizer and one recognizer and keeps their state
// consistent for the session controller. All methods are safe for concurrent
// use; Stop operations are idempotent and order-independent.
type Coordinator struct {
	synth      Synthesizer
	recognizer Recognizer
	voicePrefs []string

	mu       sync.Mutex
	state    State
	capture  captureState
	restarts int
	playDone func(err error) // pending playback completion, nil when idle
	playGen  int             // increments on every Play/cancel to drop stale events
}

// NewCoordinator creates a Coordinator. voicePrefs is a ranked list of voice
// names tried in order before falling back to any English voice, then the
// engine default.
func NewCoordinator(synth Synthesizer, recognizer Recognizer, voicePrefs []string) *Coordinator {
	return &Coordinator{
		synth:      synth,
		recognizer: recognizer,
		voicePrefs: voicePrefs,
	}
}

// Snapshot returns a copy of the current speech state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Play speaks the given text, cancelling any in-flight utterance first.
// done is invoked exactly once: with a nil error when the utterance finishes
// (engine errors fail open and count as finished), and with context.Canceled
// when the utterance is cancelled or superseded before completing. Callers
// that chain capture off completion must check the error.
func (c *Coordinator) Play(ctx context.Context, text string, done func(err error)) {
	c.mu.Lock()
	c.resolvePlaybackLocked(context.Canceled)
	c.playGen++
	gen := c.playGen
	c.playDone = done
	c.state.IsSpeaking = true
	c.mu.Unlock()

	c.synth.Cancel()

	go func() {
		select {
		case <-ctx.Done():
			c.finishPlayback(gen, ctx.Err())
			return
		case <-time.After(settleDelay):
		}

		voice := c.selectVoice(ctx)

		err := c.synth.Speak(ctx, voice, text, func(ev Event) {
			switch ev.Kind {
			case EventEnded:
				c.finishPlayback(gen, nil)
			case EventError:
				// Engine errors fail open: the caller continues as if
				// the utterance completed.
				slog.Warn("speech synthesis error", "error", ev.Err)
				c.finishPlayback(gen, nil)
			}
		})
		if err != nil {
			slog.Warn("speech synthesis unavailable", "error", err)
			c.finishPlayback(gen, nil)
		}
	}()
}

// CancelPlayback aborts the in-flight utterance, if any, resolving its
// completion callback with context.Canceled so the caller can tell a cancel
// from a real completion.
func (c *Coordinator) CancelPlayback() {
	c.synth.Cancel()
	c.mu.Lock()
	c.resolvePlaybackLocked(context.Canceled)
	c.playGen++
	c.state.IsSpeaking = false
	c.mu.Unlock()
}

func (c *Coordinator) finishPlayback(gen int, err error) {
	c.mu.Lock()
	if gen != c.playGen {
		// A newer utterance superseded this one; its completion was
		// already resolved by the cancel.
		c.mu.Unlock()
		return
	}
	c.state.IsSpeaking = false
	c.resolvePlaybackLocked(err)
	c.mu.Unlock()
}

// resolvePlaybackLocked fires and clears the pending completion callback.
// Callers must hold mu.
func (c *Coordinator) resolvePlaybackLocked(err error) {
	if c.playDone != nil {
		done := c.playDone
		c.playDone = nil
		go done(err)
	}
}

// selectVoice picks the first preferred voice available, then any English
// voice, then the engine default. A zero Voice tells the engine to choose.
func (c *Coordinator) selectVoice(ctx context.Context) Voice {
	voices, err := c.synth.Voices(ctx)
	if err != nil || len(voices) == 0 {
		return Voice{}
	}

	for _, want := range c.voicePrefs {
		for _, v := range voices {
			if v.Name == want {
				return v
			}
		}
	}
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Lang), "en") {
			return v
		}
	}
	for _, v := range voices {
		if v.Default {
			return v
		}
	}
	return voices[0]
}

// StartCapture begins continuous transcription. Final segments accumulate in
// the transcript; interim segments overwrite each other. If the engine stops
// itself while capture is still wanted, it is restarted automatically, up to
// maxCaptureRestarts consecutive failures.
func (c *Coordinator) StartCapture(ctx context.Context) {
	c.mu.Lock()
	if c.capture == captureListening {
		c.mu.Unlock()
		return
	}
	c.capture = captureListening
	c.restarts = 0
	c.state.IsRecording = true
	c.state.InterimTranscript = ""
	c.mu.Unlock()

	c.startRecognizer(ctx)
}

func (c *Coordinator) startRecognizer(ctx context.Context) {
	err := c.recognizer.Start(ctx, func(ev Event) {
		switch ev.Kind {
		case EventFinal:
			c.mu.Lock()
			if c.state.Transcript != "" && ev.Text != "" {
				c.state.Transcript += " "
			}
			c.state.Transcript += ev.Text
			c.state.InterimTranscript = ""
			c.restarts = 0
			c.mu.Unlock()
		case EventInterim:
			c.mu.Lock()
			c.state.InterimTranscript = ev.Text
			c.mu.Unlock()
		case EventEnded, EventError:
			if ev.Err != nil {
				slog.Warn("speech recognition error", "error", ev.Err)
			}
			c.maybeRestart(ctx)
		}
	})
	if err != nil {
		slog.Warn("speech recognition unavailable", "error", err)
		c.mu.Lock()
		c.capture = captureIdle
		c.state.IsRecording = false
		c.mu.Unlock()
	}
}

// maybeRestart re-arms the recognizer when capture is still wanted, giving
// up after too many consecutive engine failures.
func (c *Coordinator) maybeRestart(ctx context.Context) {
	c.mu.Lock()
	if c.capture != captureListening || ctx.Err() != nil {
		c.capture = captureIdle
		c.state.IsRecording = false
		c.mu.Unlock()
		return
	}
	c.restarts++
	if c.restarts > maxCaptureRestarts {
		slog.Warn("speech recognition gave up after repeated engine failures", "restarts", c.restarts-1)
		c.capture = captureIdle
		c.state.IsRecording = false
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.startRecognizer(ctx)
}

// StopCapture stops transcription. The accumulated transcript is preserved
// until ResetTranscript is called.
func (c *Coordinator) StopCapture() {
	c.mu.Lock()
	if c.capture == captureIdle {
		c.mu.Unlock()
		return
	}
	c.capture = captureStopping
	c.mu.Unlock()

	c.recognizer.Stop()

	c.mu.Lock()
	c.capture = captureIdle
	c.state.IsRecording = false
	c.state.InterimTranscript = ""
	c.mu.Unlock()
}

// Transcript returns the accumulated final transcript.
func (c *Coordinator) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Transcript
}

// ResetTranscript clears accumulated text at a question boundary.
func (c *Coordinator) ResetTranscript() {
	c.mu.Lock()
	c.state.Transcript = ""
	c.state.InterimTranscript = ""
	c.mu.Unlock()
}

// StopAll force-stops playback and capture. Safe to call in any state and
// any order relative to other stops; used on session teardown so no audio
// handle survives the controller.
func (c *Coordinator) StopAll() {
	c.CancelPlayback()
	c.StopCapture()
}
