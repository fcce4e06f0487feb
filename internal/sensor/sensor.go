// Package sensor provides sensor reads with hardware abstraction.
// The real implementations read Linux IIO and power-supply sysfs nodes.
// The fake implementations return scripted values for tests, and the
// synthetic ones let the daemon run without hardware.
package sensor

import (
	"errors"
	"fmt"
	"math"
)

// ErrReadFailed wraps every failed sensor read.
var ErrReadFailed = errors.New("sensor read failed")

// GravityEarth is standard gravity in m/s².
const GravityEarth = 9.80665

// Accelerometer reads raw accelerometer axes in LSB.
type Accelerometer interface {
	ReadXYZ() (x, y, z int, err error)
}

// PPG reads the optical heart rate sensor. Reads are only valid while
// the sensor is enabled.
type PPG interface {
	ReadPPG() (int, error)
	Enable() error
	Disable() error
}

// Battery reads the battery gauge.
type Battery interface {
	Level() (int, error) // percent
	Charging() (bool, error)
}

// Kind is the kind of a Sample.
type Kind string

const (
	KindAccel   Kind = "ACCEL"
	KindPPG     Kind = "PPG"
	KindBattery Kind = "BATTERY"
)

// Sample is a single sensor reading. Only the fields of its Kind are set.
type Sample struct {
	Kind Kind

	Accel float64 // magnitude, m/s²
	PPG   int     // raw intensity

	Battery  int // reported percent, 0 while charging
	Level    int // gauge percent
	Charging bool
}

// AccelScale describes the accelerometer full-scale range and resolution.
type AccelScale struct {
	RangeG int // ±g
	Bits   int
}

// LSBToMS2 converts a raw accelerometer value to m/s².
func LSBToMS2(v int, s AccelScale) float64 {
	halfScale := float64(int(1)<<s.Bits) / 2
	return GravityEarth * float64(v) * float64(s.RangeG) / halfScale
}

// Magnitude returns the Euclidean norm of an acceleration vector.
func Magnitude(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}

// BatteryReport returns the battery percentage reported to the peer.
// While charging it is always 0 so the peer can tell charging apart from
// a true level; otherwise it is the gauge level clamped to [0, 100].
func BatteryReport(level int, charging bool) int {
	if charging {
		return 0
	}
	return max(0, min(100, level))
}

// Reader wraps the individual sensors into typed samples.
type Reader struct {
	accel Accelerometer
	ppg   PPG
	batt  Battery
	scale AccelScale
}

// NewReader returns a Reader over the given sensors.
func NewReader(accel Accelerometer, ppg PPG, batt Battery, scale AccelScale) *Reader {
	return &Reader{accel: accel, ppg: ppg, batt: batt, scale: scale}
}

// ReadPPG reads one raw PPG sample.
func (r *Reader) ReadPPG() (Sample, error) {
	v, err := r.ppg.ReadPPG()
	if err != nil {
		return Sample{}, fmt.Errorf("%w: ppg: %w", ErrReadFailed, err)
	}
	return Sample{Kind: KindPPG, PPG: v}, nil
}

// ReadAccel reads the accelerometer and returns the magnitude in m/s².
func (r *Reader) ReadAccel() (Sample, error) {
	x, y, z, err := r.accel.ReadXYZ()
	if err != nil {
		return Sample{}, fmt.Errorf("%w: accelerometer: %w", ErrReadFailed, err)
	}
	m := Magnitude(LSBToMS2(x, r.scale), LSBToMS2(y, r.scale), LSBToMS2(z, r.scale))
	return Sample{Kind: KindAccel, Accel: m}, nil
}

// ReadBattery reads the gauge level and charging state.
func (r *Reader) ReadBattery() (Sample, error) {
	charging, err := r.batt.Charging()
	if err != nil {
		return Sample{}, fmt.Errorf("%w: battery charging: %w", ErrReadFailed, err)
	}
	level, err := r.batt.Level()
	if err != nil {
		return Sample{}, fmt.Errorf("%w: battery level: %w", ErrReadFailed, err)
	}
	return Sample{
		Kind:     KindBattery,
		Battery:  BatteryReport(level, charging),
		Level:    level,
		Charging: charging,
	}, nil
}

// EnablePPG powers up the PPG sensor.
func (r *Reader) EnablePPG() error { return r.ppg.Enable() }

// DisablePPG powers down the PPG sensor.
func (r *Reader) DisablePPG() error { return r.ppg.Disable() }
