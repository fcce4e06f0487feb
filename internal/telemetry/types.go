// Package telemetry turns peer link events into the transitions reported
// to the broker and decides when a heartbeat is due.
// This package has no I/O; time is always passed in.
package telemetry

import "time"

// EventType is a reported link transition.
type EventType string

const (
	EventConnected         EventType = "CONNECTED"
	EventDisconnected      EventType = "DISCONNECTED"
	EventSubscribe         EventType = "SUBSCRIBE"
	EventUnsubscribe       EventType = "UNSUBSCRIBE"
	EventProtocolViolation EventType = "PROTOCOL_VIOLATION"
)

// Event is a link transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Char      string // characteristic, for subscription events and violations
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Connected         int `json:"connected"`
	Disconnected      int `json:"disconnected"`
	Subscribe         int `json:"subscribe"`
	Unsubscribe       int `json:"unsubscribe"`
	ProtocolViolation int `json:"protocol_violation"`
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
