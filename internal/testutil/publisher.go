package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"qaforum/internal/notifications"
)

// PublishedEvent is one call captured by RecordingPublisher.
type PublishedEvent struct {
	Group   notifications.Group
	Event   string
	Payload json.RawMessage
}

// RecordingPublisher captures every published event in order.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
	// Err, when set, is returned from Publish after recording.
	Err error
}

var _ notifications.Publisher = (*RecordingPublisher)(nil)

// Publish implements notifications.Publisher.
func (p *RecordingPublisher) Publish(_ context.Context, g notifications.Group, event string, payload any) error {
	raw, _ := json.Marshal(payload)
	p.mu.Lock()
	p.events = append(p.events, PublishedEvent{Group: g, Event: event, Payload: raw})
	p.mu.Unlock()
	return p.Err
}

// Events returns a copy of the captured events.
func (p *RecordingPublisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// Named returns the captured events with the given name.
func (p *RecordingPublisher) Named(event string) []PublishedEvent {
	var out []PublishedEvent
	for _, e := range p.Events() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops every captured event.
func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}
