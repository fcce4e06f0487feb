package mqtt

import (
	"github.com/sweeney/osd-wearable/internal/telemetry"
)

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	// Events contains all link events that were published.
	Events []telemetry.Event

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the link event.
func (f *FakePublisher) Publish(event telemetry.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.Events = append(f.Events, event)

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// EventsFor returns the published link events of the given type, in order.
func (f *FakePublisher) EventsFor(typ telemetry.EventType) []telemetry.Event {
	var out []telemetry.Event
	for _, ev := range f.Events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// Subscribed returns the characteristics a peer is subscribed to according
// to the published SUBSCRIBE/UNSUBSCRIBE events. A DISCONNECTED event
// clears every subscription.
func (f *FakePublisher) Subscribed() map[string]bool {
	subs := map[string]bool{}
	for _, ev := range f.Events {
		switch ev.Type {
		case telemetry.EventSubscribe:
			subs[ev.Char] = true
		case telemetry.EventUnsubscribe:
			delete(subs, ev.Char)
		case telemetry.EventDisconnected:
			clear(subs)
		}
	}
	return subs
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.Events = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
