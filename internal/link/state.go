// Package link tracks the BLE connection and the per-characteristic
// notification subscriptions of the single connected peer.
//
// State is the only value shared between the BLE stack callbacks and the
// tick loop. Every field is updated atomically on its own; nothing here
// spans more than one field.
package link

import (
	"sync/atomic"
)

// ConnectionState is the logical connection state of the peer.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// CharID identifies a notifiable characteristic.
type CharID uint8

const (
	CharAccelerometer CharID = iota
	CharBattery
	CharHeartRate

	numChars
)

// Chars lists every notifiable characteristic in table order.
var Chars = [numChars]CharID{CharAccelerometer, CharBattery, CharHeartRate}

func (c CharID) String() string {
	switch c {
	case CharAccelerometer:
		return "accelerometer"
	case CharBattery:
		return "battery"
	case CharHeartRate:
		return "heart_rate"
	default:
		return "unknown"
	}
}

// Valid reports whether c names a known characteristic.
func (c CharID) Valid() bool { return c < numChars }

// Subscription is the notification subscription of one characteristic.
type Subscription struct {
	enabled atomic.Bool
	last    atomic.Pointer[[]byte]
}

// Enabled reports whether the peer has enabled notifications.
func (s *Subscription) Enabled() bool { return s.enabled.Load() }

// LastValue returns the last payload notified for the current
// subscription, or nil. The returned slice must not be modified.
func (s *Subscription) LastValue() []byte {
	p := s.last.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (s *Subscription) clear() {
	s.enabled.Store(false)
	s.last.Store(nil)
}

// State holds the connection state and subscriptions.
// The zero value is not usable; use NewState.
type State struct {
	conn atomic.Int32
	subs [numChars]Subscription
}

// NewState returns a State that is disconnected with all subscriptions
// disabled.
func NewState() *State {
	s := &State{}
	s.conn.Store(int32(Disconnected))
	return s
}

// Connection returns the current connection state.
func (s *State) Connection() ConnectionState { return ConnectionState(s.conn.Load()) }

// IsConnected reports whether a peer is connected.
func (s *State) IsConnected() bool { return s.Connection() == Connected }

// Subscription returns the subscription for c, or nil if c is unknown.
func (s *State) Subscription(c CharID) *Subscription {
	if !c.Valid() {
		return nil
	}
	return &s.subs[c]
}

// Subscribed reports whether a notification for c may be sent now:
// the peer is connected and has enabled notifications for c.
func (s *State) Subscribed(c CharID) bool {
	if !c.Valid() || !s.IsConnected() {
		return false
	}
	return s.subs[c].Enabled()
}

// SetLastValue records the payload most recently notified for c.
func (s *State) SetLastValue(c CharID, payload []byte) {
	if !c.Valid() {
		return
	}
	s.subs[c].last.Store(&payload)
}

// Subscriptions returns the enabled flag of every characteristic.
func (s *State) Subscriptions() map[CharID]bool {
	m := make(map[CharID]bool, numChars)
	for _, c := range Chars {
		m[c] = s.subs[c].Enabled()
	}
	return m
}

func (s *State) setConnection(c ConnectionState) { s.conn.Store(int32(c)) }

// setEnabled sets the subscription flag of c. A fresh subscription starts
// without a last value so that notify-on-change characteristics send their
// current value to the new subscriber.
func (s *State) setEnabled(c CharID, enabled bool) {
	sub := &s.subs[c]
	if enabled && !sub.enabled.Load() {
		sub.last.Store(nil)
	}
	sub.enabled.Store(enabled)
}

func (s *State) reset() {
	for i := range s.subs {
		s.subs[i].clear()
	}
}
