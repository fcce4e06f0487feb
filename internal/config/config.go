// Package config holds the daemon configuration. Defaults come from
// struct tags, a YAML file may override them and command line flags
// override both.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/osd-wearable/internal/ppg"
	"github.com/sweeney/osd-wearable/internal/scheduler"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete daemon configuration.
type Config struct {
	DeviceName string `yaml:"device_name" default:"OSD Wearable"`

	Tick         time.Duration `yaml:"tick" default:"125ms"`
	SubSamples   int           `yaml:"sub_samples" default:"3"`
	BatteryEvery int           `yaml:"battery_every" default:"1"`

	PPG       PPG       `yaml:"ppg"`
	Sensors   Sensors   `yaml:"sensors"`
	GPIO      GPIO      `yaml:"gpio"`
	HeartRate HeartRate `yaml:"heart_rate"`
	BLE       BLE       `yaml:"ble"`
	MQTT      MQTT      `yaml:"mqtt"`
	HTTP      HTTP      `yaml:"http"`
	Simulate  Simulate  `yaml:"simulate"`
}

// PPG configures heart rate extraction. The sample rate follows from the
// tick and sub-sample count.
type PPG struct {
	Window         int     `yaml:"window" default:"240"`
	Step           int     `yaml:"step" default:"80"`
	Capacity       int     `yaml:"capacity" default:"240"`
	MinBPM         int     `yaml:"min_bpm" default:"40"`
	MaxBPM         int     `yaml:"max_bpm" default:"200"`
	MinCorrelation float64 `yaml:"min_correlation" default:"0.5"`
	CutoffHz       float64 `yaml:"cutoff_hz" default:"4"`
	Debug          bool    `yaml:"debug"`
}

// Sensors locates the sysfs nodes and describes the accelerometer.
type Sensors struct {
	Accelerometer string `yaml:"accelerometer" default:"/sys/bus/iio/devices/iio:device0"`
	PPG           string `yaml:"ppg" default:"/sys/bus/iio/devices/iio:device1"`
	Battery       string `yaml:"battery" default:"/sys/class/power_supply/battery"`
	AccelRangeG   int    `yaml:"accel_range_g" default:"2"`
	AccelBits     int    `yaml:"accel_bits" default:"12"`
}

// GPIO configures the haptic motor and the charger detect line. A
// negative pin disables that line.
type GPIO struct {
	Chip            string        `yaml:"chip" default:"gpiochip0"`
	VibratorPin     int           `yaml:"vibrator_pin" default:"16"`
	ChargePin       int           `yaml:"charge_pin" default:"-1"`
	ChargeActiveLow bool          `yaml:"charge_active_low" default:"true"`
	Pulse           time.Duration `yaml:"pulse" default:"50ms"`
}

// HeartRate configures the heart rate measurement encoding.
type HeartRate struct {
	// ContactBits sets the sensor contact flags in every measurement.
	ContactBits bool `yaml:"contact_bits"`
}

// BLE configures the peer link.
type BLE struct {
	MailboxSize         int           `yaml:"mailbox_size" default:"32"`
	AdvertisingInterval time.Duration `yaml:"advertising_interval" default:"100ms"`
	AdvertisingRetry    time.Duration `yaml:"advertising_retry" default:"5s"`
}

// MQTT configures telemetry. An empty broker disables it.
type MQTT struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id" default:"osd-wearable"`
	Topic     string        `yaml:"topic" default:"osd/wearable"`
	Heartbeat time.Duration `yaml:"heartbeat" default:"15m"`
	Buffer    int           `yaml:"buffer" default:"1000"`
}

// HTTP configures the status server. An empty address disables it.
type HTTP struct {
	Addr string `yaml:"addr" default:":80"`
}

// Simulate replaces all hardware with synthetic sensors and an
// in-memory BLE stack with a peer that subscribes to everything.
type Simulate struct {
	Enabled  bool    `yaml:"enabled"`
	BPM      float64 `yaml:"bpm" default:"72"`
	DrainPer int     `yaml:"drain_per" default:"480"`
}

// Default returns the configuration with every default applied.
func Default() *Config {
	c := &Config{}
	defaults.SetDefaults(c)
	return c
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(b, c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse overlays the YAML document b on c. Unknown keys are rejected.
func Parse(b []byte, c *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Scheduler returns the tick configuration.
func (c *Config) Scheduler() scheduler.Config {
	return scheduler.Config{
		Interval:     c.Tick,
		SubSamples:   c.SubSamples,
		BatteryEvery: c.BatteryEvery,
	}
}

// Extractor returns the heart rate extractor configuration.
func (c *Config) Extractor() ppg.Config {
	return ppg.Config{
		SampleRate:     c.Scheduler().SampleRate(),
		Window:         c.PPG.Window,
		Step:           c.PPG.Step,
		Capacity:       c.PPG.Capacity,
		MinBPM:         c.PPG.MinBPM,
		MaxBPM:         c.PPG.MaxBPM,
		MinCorrelation: c.PPG.MinCorrelation,
		CutoffHz:       c.PPG.CutoffHz,
	}
}

// Validate reports every problem found in c, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.DeviceName == "" {
		errs = append(errs, errors.New("device_name must be set"))
	}
	if err := c.Scheduler().Validate(); err != nil {
		errs = append(errs, err)
	} else if err := c.Extractor().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Sensors.AccelRangeG <= 0 || c.Sensors.AccelBits < 2 || c.Sensors.AccelBits > 32 {
		errs = append(errs, fmt.Errorf("accelerometer scale ±%dg/%d bit", c.Sensors.AccelRangeG, c.Sensors.AccelBits))
	}
	if c.GPIO.Pulse <= 0 {
		errs = append(errs, errors.New("gpio pulse must be positive"))
	}
	if c.BLE.MailboxSize < 2 {
		errs = append(errs, errors.New("ble mailbox_size must be at least 2"))
	}
	if c.BLE.AdvertisingRetry <= 0 {
		errs = append(errs, errors.New("ble advertising_retry must be positive"))
	}
	if c.MQTT.Broker != "" && c.MQTT.Heartbeat <= 0 {
		errs = append(errs, errors.New("mqtt heartbeat must be positive"))
	}
	if c.Simulate.Enabled && (c.Simulate.BPM <= 0 || c.Simulate.DrainPer < 1) {
		errs = append(errs, errors.New("simulate bpm and drain_per must be positive"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}
