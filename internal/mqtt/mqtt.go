// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/osd-wearable/internal/telemetry"
)

// DefaultTopic is the topic prefix used when none is configured.
const DefaultTopic = "osd/wearable"

// EventsTopic returns the topic for link events under prefix.
func EventsTopic(prefix string) string { return prefix + "/events" }

// SystemTopic returns the topic for system lifecycle events under prefix.
func SystemTopic(prefix string) string { return prefix + "/system" }

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a link event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event telemetry.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "SAMPLING_ON"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Link LinkPayload `json:"link"`
}

// LinkPayload contains the link event details.
type LinkPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Char      string `json:"char,omitempty"`
}

// FormatPayload creates the JSON payload for a link event.
func FormatPayload(event telemetry.Event) ([]byte, error) {
	payload := Payload{
		Link: LinkPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Char:      event.Char,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
