package sensor

import (
	"math"
	"sync"
)

// SyntheticPPG produces a steady pulse waveform, one sample per read at
// the configured sample rate.
type SyntheticPPG struct {
	BPM        float64
	SampleRate float64

	mu      sync.Mutex
	n       int
	enabled bool
}

// ReadPPG returns the next waveform sample.
func (s *SyntheticPPG) ReadPPG() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return 0, ErrDisabled
	}
	phase := 2 * math.Pi * s.BPM / 60 * float64(s.n) / s.SampleRate
	s.n++
	// Systolic peak plus a smaller dicrotic wave on an optical baseline.
	v := 2000 + 300*math.Sin(phase) + 60*math.Sin(2*phase+1)
	return int(math.Round(v)), nil
}

// Enable starts the waveform.
func (s *SyntheticPPG) Enable() error {
	s.mu.Lock()
	s.enabled = true
	s.mu.Unlock()
	return nil
}

// Disable stops the waveform.
func (s *SyntheticPPG) Disable() error {
	s.mu.Lock()
	s.enabled = false
	s.mu.Unlock()
	return nil
}

// RestingAccelerometer reports the device lying flat: 1 g on z.
type RestingAccelerometer struct {
	Scale AccelScale
}

// ReadXYZ returns one g on the z axis in LSB.
func (a RestingAccelerometer) ReadXYZ() (int, int, int, error) {
	oneG := (1 << a.Scale.Bits) / 2 / a.Scale.RangeG
	return 0, 0, oneG, nil
}

// DrainingBattery loses one percent every ReadsPerPercent level reads
// and starts charging when it reaches Floor.
type DrainingBattery struct {
	ReadsPerPercent int
	Floor           int

	mu       sync.Mutex
	level    int
	reads    int
	charging bool
}

// NewDrainingBattery returns a full battery.
func NewDrainingBattery(readsPerPercent, floor int) *DrainingBattery {
	return &DrainingBattery{ReadsPerPercent: max(1, readsPerPercent), Floor: floor, level: 100}
}

// Level returns the current level.
func (b *DrainingBattery) Level() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	if b.reads%b.ReadsPerPercent == 0 {
		if b.charging {
			b.level++
			if b.level >= 100 {
				b.charging = false
			}
		} else {
			b.level--
			if b.level <= b.Floor {
				b.charging = true
			}
		}
	}
	return b.level, nil
}

// Charging reports whether the simulated charger is attached.
func (b *DrainingBattery) Charging() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.charging, nil
}
