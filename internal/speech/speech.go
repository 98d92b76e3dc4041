// Package speech coordinates text-to-speech playback and speech-to-text
// capture around external engines. Engines deliver progress through a closed
// set of typed events; the coordinator turns those into reliable completion
// callbacks and a self-healing capture loop.
package speech

import "context"

// EventKind enumerates everything an engine can report.
type EventKind int

const (
	EventStarted EventKind = iota
	EventInterim
	EventFinal
	EventEnded
	EventError
)

// Event is a single engine notification. Text is set for interim and final
// transcription results; Err is set for EventError.
type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// Voice describes one synthesis voice offered by an engine.
type Voice struct {
	Name    string
	Lang    string
	Default bool
}

// Synthesizer is a text-to-speech engine. Speak returns once the utterance
// has been accepted; progress arrives through the event callback. Cancel
// aborts any in-flight utterance and must be safe to call at any time.
type Synthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, voice Voice, text string, onEvent func(Event)) error
	Cancel()
}

// Recognizer is a continuous speech-to-text engine. Start begins a capture
// run; interim and final results arrive through the event callback until the
// engine stops itself (EventEnded/EventError) or Stop is called.
type Recognizer interface {
	Start(ctx context.Context, onEvent func(Event)) error
	Stop()
}
