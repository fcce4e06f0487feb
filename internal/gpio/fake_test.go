package gpio

import (
	"errors"
	"sync"
	"testing"
)

func TestFakeChargeInputSequence(t *testing.T) {
	f := NewFakeChargeInput(false, true, true, false)

	want := []bool{false, true, true, false, false}
	for i, w := range want {
		got, err := f.Charging()
		if err != nil {
			t.Fatalf("read %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("read %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestFakeChargeInputNoSamples(t *testing.T) {
	f := NewFakeChargeInput()

	if _, err := f.Charging(); err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeChargeInputError(t *testing.T) {
	f := NewFakeChargeInput(true)
	f.ReadError = errors.New("line busy")

	_, err := f.Charging()
	if err == nil || err.Error() != "line busy" {
		t.Errorf("expected 'line busy' error, got %v", err)
	}
}

func TestFakeChargeInputResetAndClose(t *testing.T) {
	f := NewFakeChargeInput(true, false)

	f.Charging()
	f.Charging()
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !f.Closed {
		t.Error("expected Closed to be true")
	}

	f.Reset()
	if f.Closed {
		t.Error("expected Closed to be false after Reset")
	}
	got, _ := f.Charging()
	if !got {
		t.Error("expected first sample after Reset")
	}
}

func TestFakeVibratorCountsPulses(t *testing.T) {
	var v FakeVibrator

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.Pulse()
		}()
	}
	wg.Wait()

	if v.Pulses() != 10 {
		t.Errorf("expected 10 pulses, got %d", v.Pulses())
	}
}

func TestNopVibrator(t *testing.T) {
	var v Vibrator = NopVibrator{}
	v.Pulse()
	if err := v.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// Interface checks.
var (
	_ Vibrator    = (*FakeVibrator)(nil)
	_ Vibrator    = (*RealVibrator)(nil)
	_ ChargeInput = (*FakeChargeInput)(nil)
	_ ChargeInput = (*RealChargeInput)(nil)
)
