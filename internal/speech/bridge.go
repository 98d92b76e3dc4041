package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Bridge is a Recognizer fed by an external source, such as a device posting
// transcription events over HTTP, instead of an in-process engine. Events
// pushed while no capture run is active are dropped.
type Bridge struct {
	mu      sync.Mutex
	onEvent func(Event)
}

func (b *Bridge) Start(_ context.Context, onEvent func(Event)) error {
	b.mu.Lock()
	b.onEvent = onEvent
	b.mu.Unlock()
	onEvent(Event{Kind: EventStarted})
	return nil
}

func (b *Bridge) Stop() {
	b.mu.Lock()
	b.onEvent = nil
	b.mu.Unlock()
}

// Push forwards a device event to the active capture run. It reports whether
// the event was delivered.
func (b *Bridge) Push(ev Event) bool {
	b.mu.Lock()
	handler := b.onEvent
	b.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(ev)
	return true
}

// ParseEventKind maps the wire names used by device callbacks to EventKind.
func ParseEventKind(s string) (EventKind, error) {
	switch s {
	case "started":
		return EventStarted, nil
	case "interim":
		return EventInterim, nil
	case "final":
		return EventFinal, nil
	case "ended":
		return EventEnded, nil
	case "error":
		return EventError, nil
	}
	return 0, fmt.Errorf("unknown speech event kind %q", s)
}

// NewDeviceEvent builds an Event from wire fields.
func NewDeviceEvent(kind, text, errMsg string) (Event, error) {
	k, err := ParseEventKind(kind)
	if err != nil {
		return Event{}, err
	}
	ev := Event{Kind: k, Text: text}
	if errMsg != "" {
		ev.Err = errors.New(errMsg)
	}
	return ev, nil
}
