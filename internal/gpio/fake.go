package gpio

import (
	"errors"
	"sync"
)

// FakeVibrator is a test double that counts pulses.
type FakeVibrator struct {
	mu     sync.Mutex
	pulses int

	// Closed tracks if Close was called
	Closed bool
}

// Pulse records a pulse.
func (f *FakeVibrator) Pulse() {
	f.mu.Lock()
	f.pulses++
	f.mu.Unlock()
}

// Pulses returns the number of pulses so far.
func (f *FakeVibrator) Pulses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pulses
}

// Close marks the vibrator as closed.
func (f *FakeVibrator) Close() error {
	f.Closed = true
	return nil
}

// FakeChargeInput is a test double that returns scripted charger states.
type FakeChargeInput struct {
	// Samples contains scripted values to return.
	// Each call to Charging() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Charging()
	ReadError error
}

// NewFakeChargeInput creates a FakeChargeInput with the given samples.
func NewFakeChargeInput(samples ...bool) *FakeChargeInput {
	return &FakeChargeInput{Samples: samples}
}

// Charging returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeChargeInput) Charging() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	v := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return v, nil
}

// Close marks the input as closed.
func (f *FakeChargeInput) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the input to the beginning of samples.
func (f *FakeChargeInput) Reset() {
	f.index = 0
	f.Closed = false
}
