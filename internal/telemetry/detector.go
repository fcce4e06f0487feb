package telemetry

import (
	"errors"
	"time"

	"github.com/sweeney/osd-wearable/internal/link"
)

// Detector mirrors the link state from applied peer events and records
// an Event for every change. Repeated enables or disables of the same
// characteristic are not changes.
type Detector struct {
	startTime     time.Time
	lastHeartbeat time.Time
	now           func() time.Time

	connected bool
	subs      map[link.CharID]bool

	pending     []Event
	eventCounts EventCounts
}

// NewDetector creates a detector. now stamps events whose link event
// carries no time; startTime is the base for heartbeat uptime.
func NewDetector(startTime time.Time, now func() time.Time) *Detector {
	return &Detector{
		startTime:     startTime,
		lastHeartbeat: startTime,
		now:           now,
		subs:          make(map[link.CharID]bool),
	}
}

// LinkEvent records the transition caused by ev. err is the error the
// link handler returned for ev. It satisfies scheduler.EventObserver.
func (d *Detector) LinkEvent(ev link.Event, err error) {
	ts := ev.Time
	if ts.IsZero() {
		ts = d.now()
	}

	if errors.Is(err, link.ErrInvalidState) {
		d.emit(Event{Timestamp: ts, Type: EventProtocolViolation, Char: ev.Char.String()})
		return
	}
	if err != nil && ev.Type == link.EventDescriptorWrite {
		return
	}

	switch ev.Type {
	case link.EventConnected:
		if !d.connected {
			d.connected = true
			d.emit(Event{Timestamp: ts, Type: EventConnected})
		}

	case link.EventDisconnected:
		// Subscriptions end with the connection; they are not reported
		// separately.
		clear(d.subs)
		if d.connected {
			d.connected = false
			d.emit(Event{Timestamp: ts, Type: EventDisconnected})
		}

	case link.EventDescriptorWrite:
		on := len(ev.Value) > 0 && ev.Value[0] == 1
		if d.subs[ev.Char] == on {
			return
		}
		d.subs[ev.Char] = on
		typ := EventUnsubscribe
		if on {
			typ = EventSubscribe
		}
		d.emit(Event{Timestamp: ts, Type: typ, Char: ev.Char.String()})
	}
}

func (d *Detector) emit(e Event) {
	d.pending = append(d.pending, e)
	switch e.Type {
	case EventConnected:
		d.eventCounts.Connected++
	case EventDisconnected:
		d.eventCounts.Disconnected++
	case EventSubscribe:
		d.eventCounts.Subscribe++
	case EventUnsubscribe:
		d.eventCounts.Unsubscribe++
	case EventProtocolViolation:
		d.eventCounts.ProtocolViolation++
	}
}

// Drain returns the events recorded since the last call, oldest first.
func (d *Detector) Drain() []Event {
	events := d.pending
	d.pending = nil
	return events
}

// Connected reports the mirrored connection state.
func (d *Detector) Connected() bool {
	return d.connected
}

// EventCountsSnapshot returns a copy of the event counts.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}
