//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealVibrator drives the motor through an output line.
type RealVibrator struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	p    *pulser
}

// NewRealVibrator requests pin as an output, initially off.
func NewRealVibrator(chipName string, pin int, width time.Duration) (*RealVibrator, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request vibrator pin %d: %w", pin, err)
	}

	return &RealVibrator{chip: chip, line: line, p: newPulser(line.SetValue, width)}, nil
}

// Pulse sets the line high and schedules it low again after the pulse
// width. A pulse during a pulse extends it.
func (v *RealVibrator) Pulse() {
	_ = v.p.pulse()
}

// Close switches the motor off and releases the line.
func (v *RealVibrator) Close() error {
	v.p.stop()

	var errs []error
	if v.line != nil {
		if err := v.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear vibrator pin: %w", err))
		}
		// Leave the pin as an input with pull-down so the motor stays off
		// across reboots.
		if err := v.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure vibrator pin: %w", err))
		}
		if err := v.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close vibrator pin: %w", err))
		}
	}
	if v.chip != nil {
		if err := v.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealChargeInput reads the charger detect line.
type RealChargeInput struct {
	chip      *gpiocdev.Chip
	line      *gpiocdev.Line
	activeLow bool
}

// NewRealChargeInput requests pin as an input with pull-up. Most charger
// ICs pull their status output low while charging, so activeLow is the
// usual setting.
func NewRealChargeInput(chipName string, pin int, activeLow bool) (*RealChargeInput, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request charge pin %d: %w", pin, err)
	}

	return &RealChargeInput{chip: chip, line: line, activeLow: activeLow}, nil
}

// Charging returns the logical charger state.
func (c *RealChargeInput) Charging() (bool, error) {
	raw, err := c.line.Value()
	if err != nil {
		return false, fmt.Errorf("read charge pin: %w", err)
	}
	if c.activeLow {
		return raw == 0, nil
	}
	return raw == 1, nil
}

// Close releases GPIO resources.
func (c *RealChargeInput) Close() error {
	var errs []error
	if c.line != nil {
		if err := c.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close charge pin: %w", err))
		}
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
