// Package gpio drives the haptic motor and reads the charger detect line.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Vibrator drives the haptic motor.
type Vibrator interface {
	// Pulse switches the motor on for one pulse. It does not block.
	Pulse()

	// Close releases GPIO resources.
	Close() error
}

// ChargeInput reads the charger detect line.
type ChargeInput interface {
	// Charging returns true while external power is present.
	Charging() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// NopVibrator discards pulses.
type NopVibrator struct{}

// Pulse does nothing.
func (NopVibrator) Pulse() {}

// Close does nothing.
func (NopVibrator) Close() error { return nil }
