package testsupport

import (
	"context"
	"sync"

	"marketscout/internal/notifications"
)

// RecordingNotifier captures published events.
type RecordingNotifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
}

func (r *RecordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}

// Events returns the recorded events in order.
func (r *RecordingNotifier) Events() []notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Event(nil), r.events...)
}

// Last returns the most recent payload for event, or nil.
func (r *RecordingNotifier) Last(event notifications.Event) notifications.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i] == event {
			return r.payloads[i]
		}
	}
	return nil
}
