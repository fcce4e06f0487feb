package sensor

import "errors"

var errNoSamples = errors.New("no samples configured")

// FakeAccelerometer is a test double that returns scripted raw axes.
type FakeAccelerometer struct {
	// Samples contains scripted (x, y, z) values. Each call to ReadXYZ
	// consumes the next sample; the last one repeats.
	Samples [][3]int

	// ReadError, if set, will be returned by ReadXYZ.
	ReadError error

	index int
}

// ReadXYZ returns the next scripted sample.
func (f *FakeAccelerometer) ReadXYZ() (int, int, int, error) {
	if f.ReadError != nil {
		return 0, 0, 0, f.ReadError
	}
	if len(f.Samples) == 0 {
		return 0, 0, 0, errNoSamples
	}
	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s[0], s[1], s[2], nil
}

// FakePPG is a test double that returns scripted intensities.
type FakePPG struct {
	// Samples contains scripted values; the last one repeats.
	Samples []int

	// ReadError, if set, will be returned by ReadPPG.
	ReadError error

	// DisableError, if set, will be returned by Disable.
	DisableError error

	// Enabled tracks Enable/Disable calls.
	Enabled bool

	// Reads counts successful reads.
	Reads int

	index int
}

// ReadPPG returns the next scripted sample.
func (f *FakePPG) ReadPPG() (int, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if !f.Enabled {
		return 0, ErrDisabled
	}
	if len(f.Samples) == 0 {
		return 0, errNoSamples
	}
	v := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	f.Reads++
	return v, nil
}

// Enable marks the sensor enabled.
func (f *FakePPG) Enable() error {
	f.Enabled = true
	return nil
}

// Disable marks the sensor disabled.
func (f *FakePPG) Disable() error {
	if f.DisableError != nil {
		return f.DisableError
	}
	f.Enabled = false
	return nil
}

// FakeBattery is a test double with settable level and charging state.
type FakeBattery struct {
	Percent       int
	IsCharging    bool
	LevelError    error
	ChargingError error
}

// Level returns Percent or LevelError.
func (f *FakeBattery) Level() (int, error) {
	if f.LevelError != nil {
		return 0, f.LevelError
	}
	return f.Percent, nil
}

// Charging returns IsCharging or ChargingError.
func (f *FakeBattery) Charging() (bool, error) {
	if f.ChargingError != nil {
		return false, f.ChargingError
	}
	return f.IsCharging, nil
}
