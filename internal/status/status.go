// Package status provides a thread-safe status tracker for the wearable
// daemon. It is read by the HTTP handlers, the MQTT status events and
// the debug display.
package status

import (
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/osd-wearable/internal/gatt"
	"github.com/sweeney/osd-wearable/internal/scheduler"
)

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	DeviceName  string
	TickMs      int64
	SubSamples  int
	SampleRate  float64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	Simulate    bool
}

// Link is the peer link as seen at the last update.
type Link struct {
	Connection    string
	Advertising   string
	Subscriptions map[string]bool
	DroppedEvents uint64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Link          Link
	Enabled       bool
	Readings      scheduler.Readings
	Stats         scheduler.Stats
	Notify        gatt.Stats
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Connected reports whether a peer is connected.
func (s Snapshot) Connected() bool {
	return s.Link.Connection == "CONNECTED"
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Link: Link{
				Connection:    "DISCONNECTED",
				Advertising:   "STOPPED",
				Subscriptions: map[string]bool{},
			},
		},
	}
}

// Update sets the link view, lifecycle state, readings and counters.
// Called from runLoop after every tick.
func (t *Tracker) Update(link Link, enabled bool, readings scheduler.Readings, stats scheduler.Stats, notify gatt.Stats) {
	t.mu.Lock()
	t.snap.Link = link
	t.snap.Enabled = enabled
	t.snap.Readings = readings
	t.snap.Stats = stats
	t.snap.Notify = notify
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

// Lines renders the debug display: link state, then heart rate,
// accelerometer and battery with their subscription flag (t or f).
func Lines(s Snapshot) []string {
	tf := func(b bool) string {
		if b {
			return "t"
		}
		return "f"
	}

	conn := "not connected"
	if s.Connected() {
		conn = "connected"
	}

	hr := "hr not found"
	if s.Readings.HeartRateFound {
		hr = fmt.Sprintf("%dbpm", s.Readings.HeartRate)
	}

	acc := "-"
	if s.Readings.AccelOK {
		acc = fmt.Sprintf("%.2f", s.Readings.Accel)
	}

	return []string{
		conn,
		"hr: " + tf(s.Link.Subscriptions["heart_rate"]) + ":" + hr,
		"acc: " + tf(s.Link.Subscriptions["accelerometer"]),
		acc,
		fmt.Sprintf("batt: %s:level-%d", tf(s.Link.Subscriptions["battery"]), s.Readings.Battery),
	}
}
