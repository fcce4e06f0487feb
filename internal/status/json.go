package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Link          LinkJSON     `json:"link"`
	Sampling      bool         `json:"sampling"`
	Readings      ReadingsJSON `json:"readings"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// LinkJSON is the JSON representation of the peer link.
type LinkJSON struct {
	Connection    string          `json:"connection"`
	Advertising   string          `json:"advertising"`
	Subscriptions map[string]bool `json:"subscriptions"`
}

// ReadingsJSON is the JSON representation of the latest readings.
// Absent readings are null.
type ReadingsJSON struct {
	HeartRate *int     `json:"heart_rate"`
	Accel     *float64 `json:"accel"`
	Battery   int      `json:"battery"`
	Level     int      `json:"level"`
	Charging  bool     `json:"charging"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of the daemon counters.
type CountsJSON struct {
	Ticks              uint64            `json:"ticks"`
	Events             uint64            `json:"events"`
	DroppedEvents      uint64            `json:"dropped_events"`
	ProtocolViolations uint64            `json:"protocol_violations"`
	PPGSamples         uint64            `json:"ppg_samples"`
	MissedSubSamples   uint64            `json:"missed_sub_samples"`
	SensorFailures     map[string]uint64 `json:"sensor_failures"`
	Estimates          uint64            `json:"estimates"`
	Inconclusive       uint64            `json:"inconclusive"`
	Notifications      map[string]uint64 `json:"notifications"`
	NotifyFailures     uint64            `json:"notify_failures"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	DeviceName  string  `json:"device_name"`
	TickMs      int64   `json:"tick_ms"`
	SubSamples  int     `json:"sub_samples"`
	SampleRate  float64 `json:"sample_rate_hz"`
	HeartbeatMs int64   `json:"heartbeat_ms"`
	Broker      string  `json:"broker"`
	HTTPAddr    string  `json:"http_addr"`
	Simulate    bool    `json:"simulate,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	subs := snap.Link.Subscriptions
	if subs == nil {
		subs = map[string]bool{}
	}

	readings := ReadingsJSON{
		Battery:  snap.Readings.Battery,
		Level:    snap.Readings.Level,
		Charging: snap.Readings.Charging,
	}
	if snap.Readings.HeartRateFound {
		hr := snap.Readings.HeartRate
		readings.HeartRate = &hr
	}
	if snap.Readings.AccelOK {
		acc := snap.Readings.Accel
		readings.Accel = &acc
	}

	return StatusInner{
		Link: LinkJSON{
			Connection:    snap.Link.Connection,
			Advertising:   snap.Link.Advertising,
			Subscriptions: subs,
		},
		Sampling:      snap.Enabled,
		Readings:      readings,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Ticks:              snap.Stats.Ticks,
			Events:             snap.Stats.Events,
			DroppedEvents:      snap.Link.DroppedEvents,
			ProtocolViolations: snap.Stats.ProtocolViolations,
			PPGSamples:         snap.Stats.PPGSamples,
			MissedSubSamples:   snap.Stats.MissedSubSamples,
			SensorFailures:     snap.Stats.SensorFailures,
			Estimates:          snap.Stats.Estimates,
			Inconclusive:       snap.Stats.Inconclusive,
			Notifications:      snap.Notify.Sent,
			NotifyFailures:     snap.Notify.Failed,
		},
		Config: ConfigJSON{
			DeviceName:  snap.Config.DeviceName,
			TickMs:      snap.Config.TickMs,
			SubSamples:  snap.Config.SubSamples,
			SampleRate:  snap.Config.SampleRate,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			Simulate:    snap.Config.Simulate,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
