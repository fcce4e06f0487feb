package sensor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
)

// ErrDisabled is returned when a disabled sensor is read.
var ErrDisabled = errors.New("sensor disabled")

// ChargeInput reports the charger state from a dedicated input line.
type ChargeInput interface {
	Charging() (bool, error)
}

// IIOAccelerometer reads in_accel_{x,y,z}_raw from an IIO device directory
// such as /sys/bus/iio/devices/iio:device0.
type IIOAccelerometer struct {
	dir string
}

// NewIIOAccelerometer returns an accelerometer backed by dir.
func NewIIOAccelerometer(dir string) (*IIOAccelerometer, error) {
	if _, err := os.Stat(filepath.Join(dir, "in_accel_x_raw")); err != nil {
		return nil, fmt.Errorf("accelerometer: %w", err)
	}
	return &IIOAccelerometer{dir: dir}, nil
}

// ReadXYZ reads the three raw axes.
func (a *IIOAccelerometer) ReadXYZ() (x, y, z int, err error) {
	if x, err = readInt(filepath.Join(a.dir, "in_accel_x_raw")); err != nil {
		return 0, 0, 0, err
	}
	if y, err = readInt(filepath.Join(a.dir, "in_accel_y_raw")); err != nil {
		return 0, 0, 0, err
	}
	if z, err = readInt(filepath.Join(a.dir, "in_accel_z_raw")); err != nil {
		return 0, 0, 0, err
	}
	return x, y, z, nil
}

// IIOPPG reads in_intensity_raw from an IIO optical sensor directory.
// Enable and Disable gate reads; the driver powers the LED on read.
type IIOPPG struct {
	path    string
	enabled atomic.Bool
}

// NewIIOPPG returns a PPG sensor backed by dir.
func NewIIOPPG(dir string) (*IIOPPG, error) {
	path := filepath.Join(dir, "in_intensity_raw")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("ppg: %w", err)
	}
	return &IIOPPG{path: path}, nil
}

// ReadPPG reads one raw intensity value.
func (p *IIOPPG) ReadPPG() (int, error) {
	if !p.enabled.Load() {
		return 0, ErrDisabled
	}
	return readInt(p.path)
}

// Enable allows reads.
func (p *IIOPPG) Enable() error {
	p.enabled.Store(true)
	return nil
}

// Disable stops reads.
func (p *IIOPPG) Disable() error {
	p.enabled.Store(false)
	return nil
}

// PowerSupply reads a /sys/class/power_supply/<name> battery. When a
// ChargeInput is given it decides the charging state instead of the
// status attribute.
type PowerSupply struct {
	dir    string
	charge ChargeInput
}

// NewPowerSupply returns a battery backed by dir. charge may be nil.
func NewPowerSupply(dir string, charge ChargeInput) (*PowerSupply, error) {
	if _, err := os.Stat(filepath.Join(dir, "capacity")); err != nil {
		return nil, fmt.Errorf("battery: %w", err)
	}
	return &PowerSupply{dir: dir, charge: charge}, nil
}

// Level reads the capacity attribute.
func (p *PowerSupply) Level() (int, error) {
	return readInt(filepath.Join(p.dir, "capacity"))
}

// Charging reports whether the battery is charging.
func (p *PowerSupply) Charging() (bool, error) {
	if p.charge != nil {
		return p.charge.Charging()
	}
	b, err := os.ReadFile(filepath.Join(p.dir, "status"))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(b)) == "Charging", nil
}

func readInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}
