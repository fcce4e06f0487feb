//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealVibrator is not available on non-Linux platforms.
type RealVibrator struct{}

// NewRealVibrator returns an error on non-Linux platforms.
func NewRealVibrator(chipName string, pin int, width time.Duration) (*RealVibrator, error) {
	return nil, errUnsupported
}

// Pulse does nothing on non-Linux platforms.
func (v *RealVibrator) Pulse() {}

// Close is not implemented on non-Linux platforms.
func (v *RealVibrator) Close() error {
	return nil
}

// RealChargeInput is not available on non-Linux platforms.
type RealChargeInput struct{}

// NewRealChargeInput returns an error on non-Linux platforms.
func NewRealChargeInput(chipName string, pin int, activeLow bool) (*RealChargeInput, error) {
	return nil, errUnsupported
}

// Charging is not implemented on non-Linux platforms.
func (c *RealChargeInput) Charging() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (c *RealChargeInput) Close() error {
	return nil
}
