package speech

import "context"

// NopSynthesizer reports every utterance as immediately finished. Used when
// speech output is disabled.
type NopSynthesizer struct{}

func (NopSynthesizer) Voices(context.Context) ([]Voice, error) { return nil, nil }

func (NopSynthesizer) Speak(_ context.Context, _ Voice, _ string, onEvent func(Event)) error {
	onEvent(Event{Kind: EventStarted})
	onEvent(Event{Kind: EventEnded})
	return nil
}

func (NopSynthesizer) Cancel() {}

// NopRecognizer captures nothing. Used when speech input is disabled; the
// candidate types answers instead.
type NopRecognizer struct{}

func (NopRecognizer) Start(_ context.Context, onEvent func(Event)) error {
	onEvent(Event{Kind: EventStarted})
	return nil
}

func (NopRecognizer) Stop() {}
