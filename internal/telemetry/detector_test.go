package telemetry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sweeney/osd-wearable/internal/link"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newDetector() *Detector {
	return NewDetector(t0, func() time.Time { return t0 })
}

func write(c link.CharID, v byte) link.Event {
	return link.Event{Type: link.EventDescriptorWrite, Char: c, Value: []byte{v}}
}

func types(events []Event) []EventType {
	var out []EventType
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

func equalTypes(a, b []EventType) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func TestNewDetector(t *testing.T) {
	d := newDetector()
	if d.Connected() {
		t.Error("new detector should not be connected")
	}
	if len(d.Drain()) != 0 {
		t.Error("new detector should have no events")
	}
	if !d.lastHeartbeat.Equal(t0) {
		t.Errorf("expected lastHeartbeat %v, got %v", t0, d.lastHeartbeat)
	}
}

func TestConnectSubscribeDisconnect(t *testing.T) {
	d := newDetector()

	d.LinkEvent(link.Event{Type: link.EventConnected, Time: t0.Add(time.Second)}, nil)
	d.LinkEvent(write(link.CharHeartRate, 1), nil)
	d.LinkEvent(write(link.CharBattery, 1), nil)
	d.LinkEvent(write(link.CharBattery, 0), nil)
	d.LinkEvent(link.Event{Type: link.EventDisconnected}, nil)

	events := d.Drain()
	want := []EventType{EventConnected, EventSubscribe, EventSubscribe, EventUnsubscribe, EventDisconnected}
	if !equalTypes(types(events), want) {
		t.Fatalf("got %v, want %v", types(events), want)
	}
	if events[0].Timestamp != t0.Add(time.Second) {
		t.Errorf("event time: got %v", events[0].Timestamp)
	}
	if events[1].Char != "heart_rate" || events[3].Char != "battery" {
		t.Errorf("chars: got %q, %q", events[1].Char, events[3].Char)
	}
	if !events[4].Timestamp.Equal(t0) {
		t.Errorf("zero event time should be stamped with now, got %v", events[4].Timestamp)
	}

	if len(d.Drain()) != 0 {
		t.Error("second drain should be empty")
	}
}

func TestRepeatedWritesAreNotTransitions(t *testing.T) {
	d := newDetector()
	d.LinkEvent(link.Event{Type: link.EventConnected}, nil)
	d.LinkEvent(write(link.CharAccelerometer, 0), nil)
	d.LinkEvent(write(link.CharAccelerometer, 1), nil)
	d.LinkEvent(write(link.CharAccelerometer, 1), nil)
	d.LinkEvent(link.Event{Type: link.EventConnected}, nil)

	want := []EventType{EventConnected, EventSubscribe}
	if got := types(d.Drain()); !equalTypes(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestResubscribeAfterReconnect(t *testing.T) {
	d := newDetector()
	d.LinkEvent(link.Event{Type: link.EventConnected}, nil)
	d.LinkEvent(write(link.CharBattery, 1), nil)
	d.LinkEvent(link.Event{Type: link.EventDisconnected}, nil)
	d.LinkEvent(link.Event{Type: link.EventConnected}, nil)
	d.LinkEvent(write(link.CharBattery, 1), nil)

	want := []EventType{EventConnected, EventSubscribe, EventDisconnected, EventConnected, EventSubscribe}
	if got := types(d.Drain()); !equalTypes(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestProtocolViolation(t *testing.T) {
	d := newDetector()
	err := fmt.Errorf("descriptor write to battery: %w", link.ErrInvalidState)
	d.LinkEvent(write(link.CharBattery, 1), err)

	events := d.Drain()
	if len(events) != 1 || events[0].Type != EventProtocolViolation || events[0].Char != "battery" {
		t.Fatalf("got %+v", events)
	}
	if d.EventCountsSnapshot().ProtocolViolation != 1 {
		t.Errorf("expected 1 violation counted")
	}
}

func TestRejectedWriteIgnored(t *testing.T) {
	d := newDetector()
	d.LinkEvent(link.Event{Type: link.EventConnected}, nil)
	d.Drain()
	d.LinkEvent(write(link.CharID(9), 1), link.ErrUnknownCharacteristic)
	if events := d.Drain(); len(events) != 0 {
		t.Errorf("expected no events, got %v", types(events))
	}
}

func TestAdvertisingFailureStillDisconnects(t *testing.T) {
	d := newDetector()
	d.LinkEvent(link.Event{Type: link.EventConnected}, nil)
	d.LinkEvent(link.Event{Type: link.EventDisconnected}, errors.New("advertising failed"))

	want := []EventType{EventConnected, EventDisconnected}
	if got := types(d.Drain()); !equalTypes(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEventCounts(t *testing.T) {
	d := newDetector()
	for i := 0; i < 3; i++ {
		d.LinkEvent(link.Event{Type: link.EventConnected}, nil)
		d.LinkEvent(write(link.CharHeartRate, 1), nil)
		d.LinkEvent(write(link.CharHeartRate, 0), nil)
		d.LinkEvent(link.Event{Type: link.EventDisconnected}, nil)
	}

	want := EventCounts{Connected: 3, Disconnected: 3, Subscribe: 3, Unsubscribe: 3}
	if got := d.EventCountsSnapshot(); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestCheckHeartbeat(t *testing.T) {
	d := newDetector()
	interval := 15 * time.Minute

	if hb := d.CheckHeartbeat(t0.Add(14*time.Minute), interval); hb != nil {
		t.Error("expected no heartbeat before interval")
	}

	d.LinkEvent(link.Event{Type: link.EventConnected}, nil)
	hb := d.CheckHeartbeat(t0.Add(15*time.Minute), interval)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", hb.Uptime)
	}
	if hb.Counts.Connected != 1 {
		t.Errorf("Counts.Connected: got %d, want 1", hb.Counts.Connected)
	}

	if d.CheckHeartbeat(t0.Add(20*time.Minute), interval) != nil {
		t.Error("expected no heartbeat 5m after the last one")
	}
	if d.CheckHeartbeat(t0.Add(30*time.Minute), interval) == nil {
		t.Error("expected heartbeat 15m after the last one")
	}
}

func TestCheckHeartbeatDisabled(t *testing.T) {
	d := newDetector()
	if d.CheckHeartbeat(t0.Add(24*time.Hour), 0) != nil {
		t.Error("expected no heartbeat when disabled")
	}
}
