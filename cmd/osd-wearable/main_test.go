package main

import (
	"errors"
	"io"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sweeney/osd-wearable/internal/config"
	"github.com/sweeney/osd-wearable/internal/gatt"
	"github.com/sweeney/osd-wearable/internal/gpio"
	"github.com/sweeney/osd-wearable/internal/link"
	"github.com/sweeney/osd-wearable/internal/mqtt"
	"github.com/sweeney/osd-wearable/internal/ppg"
	"github.com/sweeney/osd-wearable/internal/scheduler"
	"github.com/sweeney/osd-wearable/internal/sensor"
	"github.com/sweeney/osd-wearable/internal/status"
	"github.com/sweeney/osd-wearable/internal/telemetry"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfo(t *testing.T) {
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}

	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "192.168.1.100")
	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" || info.IP != "192.168.1.100" {
		t.Errorf("got %+v", info)
	}
	if info.SSID != "" {
		t.Errorf("SSID: got %q, want empty", info.SSID)
	}
}

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGUSR1, "SIGUSR1"},
		{syscall.SIGUSR2, "SIGUSR2"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := signalName(tt.sig); got != tt.want {
			t.Errorf("signalName(%v) = %q, want %q", tt.sig, got, tt.want)
		}
	}
}

// --- command line ---

func TestConfigureLogger(t *testing.T) {
	tests := []struct {
		args    []string
		want    logrus.Level
		wantErr bool
	}{
		{nil, logrus.InfoLevel, false},
		{[]string{"--verbose"}, logrus.DebugLevel, false},
		{[]string{"--log-level", "warn"}, logrus.WarnLevel, false},
		{[]string{"--log-level", "error", "-v"}, logrus.ErrorLevel, false},
		{[]string{"--log-level", "loud"}, 0, true},
	}
	for _, tt := range tests {
		cmd := newRootCmd()
		if err := cmd.ParseFlags(tt.args); err != nil {
			t.Fatalf("parse %v: %v", tt.args, err)
		}
		log, err := configureLogger(cmd)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%v: expected error", tt.args)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%v: %v", tt.args, err)
		}
		if log.GetLevel() != tt.want {
			t.Errorf("%v: level %v, want %v", tt.args, log.GetLevel(), tt.want)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	cmd := newRootCmd()
	err := cmd.ParseFlags([]string{
		"--simulate", "--device-name", "Wrist", "--tick", "250ms",
		"--broker", "tcp://broker:1883", "--http", "", "--contact-bits",
	})
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	applyFlags(cmd, cfg)

	if !cfg.Simulate.Enabled {
		t.Error("simulate not applied")
	}
	if cfg.DeviceName != "Wrist" {
		t.Errorf("device name %q", cfg.DeviceName)
	}
	if cfg.Tick != 250*time.Millisecond {
		t.Errorf("tick %v", cfg.Tick)
	}
	if cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("broker %q", cfg.MQTT.Broker)
	}
	if cfg.HTTP.Addr != "" {
		t.Errorf("http %q, want disabled", cfg.HTTP.Addr)
	}
	if !cfg.HeartRate.ContactBits {
		t.Error("contact bits not applied")
	}
	// Unset flags keep the defaults.
	if cfg.MQTT.Heartbeat != 15*time.Minute {
		t.Errorf("heartbeat %v, want default", cfg.MQTT.Heartbeat)
	}
}

func TestPrintStateLogsDisableError(t *testing.T) {
	log, hook := test.NewNullLogger()
	ppgSensor := &sensor.FakePPG{Samples: []int{1200}, DisableError: errors.New("i2c timeout")}
	reader := sensor.NewReader(
		&sensor.FakeAccelerometer{Samples: [][3]int{{0, 0, 1024}}},
		ppgSensor,
		&sensor.FakeBattery{Percent: 70},
		sensor.AccelScale{RangeG: 2, Bits: 12},
	)

	if err := printState(reader, log); err != nil {
		t.Fatalf("printState: %v", err)
	}
	if !ppgSensor.Enabled {
		t.Error("failed disable should leave the sensor enabled")
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected a warning, got %+v", hook.AllEntries())
	}
	if entry.Data[logrus.ErrorKey] == nil {
		t.Errorf("warning carries no error: %+v", entry.Data)
	}
}

func TestSimulatedDevicePrintState(t *testing.T) {
	cfg := config.Default()
	cfg.Simulate.Enabled = true
	log := logrus.New()
	log.SetOutput(io.Discard)
	dev := openSimulated(cfg, log)
	if err := dev.stack.Notify(link.CharBattery, []byte{80}); err != nil {
		t.Errorf("simulated notify: %v", err)
	}
	if err := printState(dev.reader, log); err != nil {
		t.Fatalf("printState: %v", err)
	}
	s, err := dev.reader.ReadAccel()
	if err != nil {
		t.Fatal(err)
	}
	if s.Accel < 9.8 || s.Accel > 9.82 {
		t.Errorf("resting accel %.3f, want 1 g", s.Accel)
	}
}

func TestSimulatePeer(t *testing.T) {
	mb := link.NewMailbox(8)
	simulatePeer(mb, time.Time{})

	var got []link.Event
	mb.Drain(func(ev link.Event) { got = append(got, ev) })
	if len(got) != 1+len(link.Chars) {
		t.Fatalf("got %d events, want %d", len(got), 1+len(link.Chars))
	}
	if got[0].Type != link.EventConnected {
		t.Errorf("first event %v, want CONNECTED", got[0].Type)
	}
	for i, c := range link.Chars {
		ev := got[i+1]
		if ev.Type != link.EventDescriptorWrite || ev.Char != c || len(ev.Value) != 1 || ev.Value[0] != 1 {
			t.Errorf("event %d: %+v, want enable of %v", i+1, ev, c)
		}
	}
}

// --- run loop ---

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from the loop goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

type harness struct {
	loop    *loop
	stack   *gatt.FakeStack
	haptic  *gpio.FakeVibrator
	pub     *mqtt.FakePublisher
	mailbox *link.Mailbox

	tick chan time.Time
	sig  chan os.Signal
	done chan error
}

func newHarness(t *testing.T, heartbeat time.Duration, clock func() time.Time) *harness {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	h := &harness{
		stack:   gatt.NewFakeStack(),
		haptic:  &gpio.FakeVibrator{},
		pub:     mqtt.NewFakePublisher(),
		mailbox: link.NewMailbox(16),
		tick:    make(chan time.Time),
		sig:     make(chan os.Signal),
		done:    make(chan error, 1),
	}

	scale := sensor.AccelScale{RangeG: 2, Bits: 12}
	reader := sensor.NewReader(
		&sensor.FakeAccelerometer{Samples: [][3]int{{0, 0, 1024}}},
		&sensor.SyntheticPPG{BPM: 72, SampleRate: 24},
		&sensor.FakeBattery{Percent: 80},
		scale,
	)
	state := link.NewState()
	handler := link.NewHandler(state, h.stack, h.haptic, time.Second, log)
	gateway := gatt.NewGateway(state, h.stack, gatt.NewEncoder(false))
	cfg := scheduler.Config{Interval: 125 * time.Millisecond, SubSamples: 3, BatteryEvery: 1}
	sched, err := scheduler.New(cfg, state, handler, h.mailbox, reader, gateway, &scheduler.FakeTimers{}, log)
	if err != nil {
		t.Fatal(err)
	}
	start := clock()
	detector := telemetry.NewDetector(start, clock)
	sched.SetObserver(detector)
	app := scheduler.NewApp(sched, reader, ppg.DefaultConfig(), false, log)
	if err := handler.Start(); err != nil {
		t.Fatal(err)
	}
	if err := app.Enable(); err != nil {
		t.Fatal(err)
	}

	h.loop = &loop{
		app:        app,
		state:      state,
		handler:    handler,
		mailbox:    h.mailbox,
		gateway:    gateway,
		detector:   detector,
		publisher:  h.pub,
		mqttStatus: h.pub,
		tracker:    status.NewTracker(start, status.Config{DeviceName: "test"}),
		heartbeat:  heartbeat,
		now:        clock,
		log:        log,
	}
	go func() { h.done <- h.loop.run(h.tick, h.sig) }()
	return h
}

// ticks runs n ticks. Each send returns once the loop has taken the tick,
// so the previous tick is complete.
func (h *harness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.tick <- time.Time{}
	}
}

// signal delivers s and waits until the loop has picked it up.
func (h *harness) signal(s os.Signal) {
	h.sig <- s
}

// stop terminates the loop with SIGTERM and returns its error.
func (h *harness) stop() error {
	h.sig <- syscall.SIGTERM
	return <-h.done
}

func (h *harness) connectAndSubscribe(chars ...link.CharID) {
	h.mailbox.Post(link.Event{Type: link.EventConnected})
	for _, c := range chars {
		h.mailbox.Post(link.Event{Type: link.EventDescriptorWrite, Char: c, Value: []byte{1}})
	}
}

func systemEventNames(pub *mqtt.FakePublisher) []string {
	var names []string
	for _, e := range pub.SystemEvents {
		names = append(names, e.Event)
	}
	return names
}

func TestRunLoopShutdown(t *testing.T) {
	for _, sig := range []os.Signal{syscall.SIGINT, syscall.SIGTERM} {
		h := newHarness(t, 0, fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second))
		h.ticks(3)
		h.sig <- sig
		if err := <-h.done; err != nil {
			t.Fatalf("run returned error: %v", err)
		}

		if len(h.pub.Events) != 0 {
			t.Errorf("expected no link events without a peer, got %d", len(h.pub.Events))
		}
		if len(h.pub.SystemEvents) != 1 {
			t.Fatalf("expected 1 system event, got %d", len(h.pub.SystemEvents))
		}
		ev := h.pub.SystemEvents[0]
		if ev.Event != "SHUTDOWN" || ev.Reason != signalName(sig) || !ev.Retained {
			t.Errorf("got %+v, want retained SHUTDOWN/%s", ev, signalName(sig))
		}
		if len(ev.RawPayload) == 0 {
			t.Error("shutdown event has no status payload")
		}
		if h.loop.app.Enabled() {
			t.Error("sampling still enabled after shutdown")
		}
	}
}

func TestRunLoopPublishesLinkEvents(t *testing.T) {
	h := newHarness(t, 0, fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second))
	h.connectAndSubscribe(link.CharAccelerometer, link.CharBattery)
	h.ticks(2)
	h.mailbox.Post(link.Event{Type: link.EventDisconnected})
	h.ticks(1)
	if err := h.stop(); err != nil {
		t.Fatal(err)
	}

	want := []struct {
		typ  telemetry.EventType
		char string
	}{
		{telemetry.EventConnected, ""},
		{telemetry.EventSubscribe, "accelerometer"},
		{telemetry.EventSubscribe, "battery"},
		{telemetry.EventDisconnected, ""},
	}
	if len(h.pub.Events) != len(want) {
		t.Fatalf("got %d events %+v, want %d", len(h.pub.Events), h.pub.Events, len(want))
	}
	for i, w := range want {
		if got := h.pub.Events[i]; got.Type != w.typ || got.Char != w.char {
			t.Errorf("event %d: got %s/%s, want %s/%s", i, got.Type, got.Char, w.typ, w.char)
		}
	}
}

func TestRunLoopNotifiesPeer(t *testing.T) {
	h := newHarness(t, 0, fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second))
	h.connectAndSubscribe(link.CharAccelerometer, link.CharBattery)
	h.ticks(4)
	if err := h.stop(); err != nil {
		t.Fatal(err)
	}

	if n := len(h.stack.NotificationsFor(link.CharAccelerometer)); n != 4 {
		t.Errorf("accelerometer notifications: got %d, want 4", n)
	}
	// Battery is only sent when it changes.
	batt := h.stack.NotificationsFor(link.CharBattery)
	if len(batt) != 1 || len(batt[0]) != 1 || batt[0][0] != 80 {
		t.Errorf("battery notifications: got %v, want [[80]]", batt)
	}
}

func TestRunLoopUpdatesTracker(t *testing.T) {
	h := newHarness(t, 0, fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second))
	h.connectAndSubscribe(link.CharAccelerometer)
	h.ticks(2)
	if err := h.stop(); err != nil {
		t.Fatal(err)
	}

	snap := h.loop.tracker.Snapshot()
	if !snap.Connected() {
		t.Errorf("connection %q, want CONNECTED", snap.Link.Connection)
	}
	if snap.Link.Advertising != "STOPPED" {
		t.Errorf("advertising %q, want STOPPED while connected", snap.Link.Advertising)
	}
	if !snap.Link.Subscriptions["accelerometer"] || snap.Link.Subscriptions["battery"] {
		t.Errorf("subscriptions %v", snap.Link.Subscriptions)
	}
	if !snap.Readings.AccelOK || snap.Readings.Level != 80 {
		t.Errorf("readings %+v", snap.Readings)
	}
	if snap.Stats.Ticks != 2 {
		t.Errorf("ticks %d, want 2", snap.Stats.Ticks)
	}
	if snap.Notify.Sent["accelerometer"] != 2 {
		t.Errorf("sent %v", snap.Notify.Sent)
	}
}

func TestRunLoopPauseAndResume(t *testing.T) {
	h := newHarness(t, 0, fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second))
	h.connectAndSubscribe(link.CharAccelerometer)
	h.ticks(2)

	h.signal(syscall.SIGUSR1)
	h.ticks(3)
	if h.loop.app.Enabled() {
		t.Error("sampling enabled after SIGUSR1")
	}
	if n := len(h.stack.NotificationsFor(link.CharAccelerometer)); n != 2 {
		t.Errorf("notifications while paused: got %d, want 2", n)
	}

	// Peer events are still applied while paused.
	h.mailbox.Post(link.Event{Type: link.EventDescriptorWrite, Char: link.CharBattery, Value: []byte{1}})
	h.ticks(1)

	h.signal(syscall.SIGUSR2)
	h.ticks(1)
	if err := h.stop(); err != nil {
		t.Fatal(err)
	}

	if n := len(h.stack.NotificationsFor(link.CharAccelerometer)); n != 3 {
		t.Errorf("notifications after resume: got %d, want 3", n)
	}
	if n := len(h.stack.NotificationsFor(link.CharBattery)); n != 1 {
		t.Errorf("battery notifications after resume: got %d, want 1", n)
	}

	got := systemEventNames(h.pub)
	want := []string{"SAMPLING_OFF", "SAMPLING_ON", "SHUTDOWN"}
	if len(got) != len(want) {
		t.Fatalf("system events %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("system event %d: %s, want %s", i, got[i], want[i])
		}
	}
	if h.pub.SystemEvents[0].Reason != "SIGUSR1" {
		t.Errorf("SAMPLING_OFF reason %q", h.pub.SystemEvents[0].Reason)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	// No peer events, so the clock is read once per tick by the heartbeat
	// check: tick k sees start+k seconds.
	h := newHarness(t, 3*time.Second, fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second))
	h.ticks(10)
	if err := h.stop(); err != nil {
		t.Fatal(err)
	}

	got := systemEventNames(h.pub)
	want := []string{"HEARTBEAT", "HEARTBEAT", "HEARTBEAT", "SHUTDOWN"}
	if len(got) != len(want) {
		t.Fatalf("system events %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("system event %d: %s, want %s", i, got[i], want[i])
		}
	}
	if h.pub.SystemEvents[0].Retained {
		t.Error("heartbeat should not be retained")
	}
	if len(h.pub.SystemEvents[0].RawPayload) == 0 {
		t.Error("heartbeat has no status payload")
	}
}

func TestRunLoopHeartbeatIncludesNetworkInfo(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "HomeNet")

	h := newHarness(t, time.Second, fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second))
	h.ticks(1)
	if err := h.stop(); err != nil {
		t.Fatal(err)
	}
	snap := h.loop.tracker.Snapshot()
	if snap.Network == nil || snap.Network.SSID != "HomeNet" {
		t.Errorf("network %+v, want SSID HomeNet", snap.Network)
	}
}

func TestRunLoopPublishError(t *testing.T) {
	h := newHarness(t, 0, fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second))
	h.pub.PublishError = errors.New("broker down")
	h.connectAndSubscribe(link.CharAccelerometer)
	h.ticks(3)
	if err := h.stop(); err != nil {
		t.Fatalf("run should not fail on publish errors: %v", err)
	}
	if n := len(h.stack.NotificationsFor(link.CharAccelerometer)); n != 3 {
		t.Errorf("sampling stopped on publish error: %d notifications", n)
	}
}
