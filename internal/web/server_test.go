package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/osd-wearable/internal/gatt"
	"github.com/sweeney/osd-wearable/internal/scheduler"
	"github.com/sweeney/osd-wearable/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		DeviceName:  "OSD Wearable",
		TickMs:      125,
		SubSamples:  3,
		SampleRate:  24,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":80",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func streaming(tr *status.Tracker) {
	tr.Update(
		status.Link{
			Connection:    "CONNECTED",
			Advertising:   "STOPPED",
			Subscriptions: map[string]bool{"accelerometer": true, "battery": true, "heart_rate": true},
		},
		true,
		scheduler.Readings{HeartRate: 72, HeartRateFound: true, Accel: 9.80665, AccelOK: true, Battery: 80, Level: 80},
		scheduler.Stats{Ticks: 400, Estimates: 3, SensorFailures: map[string]uint64{"ppg": 0}},
		gatt.Stats{Sent: map[string]uint64{"heart_rate": 3}},
	)
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	streaming(tr)
	tr.SetMQTTConnected(true)

	sj := getJSON(t, ts.URL+"/index.json")

	if sj.Status.Link.Connection != "CONNECTED" {
		t.Errorf("Connection: got %q, want CONNECTED", sj.Status.Link.Connection)
	}
	if !sj.Status.Sampling {
		t.Error("expected Sampling=true")
	}
	if sj.Status.Readings.HeartRate == nil || *sj.Status.Readings.HeartRate != 72 {
		t.Errorf("HeartRate: got %v, want 72", sj.Status.Readings.HeartRate)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q", sj.Status.MQTT.Broker)
	}
	if sj.Status.Counts.Ticks != 400 {
		t.Errorf("Counts.Ticks: got %d, want 400", sj.Status.Counts.Ticks)
	}
	if sj.Status.Counts.Notifications["heart_rate"] != 3 {
		t.Errorf("Counts.Notifications: got %v", sj.Status.Counts.Notifications)
	}
	if sj.Status.Config.TickMs != 125 {
		t.Errorf("Config.TickMs: got %d, want 125", sj.Status.Config.TickMs)
	}
}

func TestJSONBeforeFirstTick(t *testing.T) {
	ts, _ := newTestServer(t)
	sj := getJSON(t, ts.URL+"/index.json")

	if sj.Status.Link.Connection != "DISCONNECTED" {
		t.Errorf("Connection: got %q, want DISCONNECTED", sj.Status.Link.Connection)
	}
	if sj.Status.Readings.HeartRate != nil || sj.Status.Readings.Accel != nil {
		t.Error("expected null readings before the first tick")
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	streaming(tr)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"<title>OSD Wearable</title>", "hr: t:72bpm", "CONNECTED", "heart_rate notifications"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestDisplayEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	streaming(tr)

	resp, err := http.Get(ts.URL + "/display.txt")
	if err != nil {
		t.Fatalf("GET /display.txt: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	want := "connected\nhr: t:72bpm\nacc: t\n9.81\nbatt: t:level-80\n"
	if string(body) != want {
		t.Errorf("display: got %q, want %q", body, want)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	sj1 := getJSON(t, ts.URL+"/index.json")
	if sj1.Status.Sampling {
		t.Error("expected Sampling=false initially")
	}

	streaming(tr)
	tr.SetMQTTConnected(true)

	sj2 := getJSON(t, ts.URL+"/index.json")
	if !sj2.Status.Sampling {
		t.Error("expected Sampling=true after update")
	}
	if !sj2.Status.Link.Subscriptions["battery"] {
		t.Error("expected battery subscription after update")
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
