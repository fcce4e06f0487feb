package ppg

import "math"

// dcBlocker is a first order high-pass filter removing the PPG baseline.
//
//	y[n] = x[n] - x[n-1] + r*y[n-1]
type dcBlocker struct {
	r      float64
	prevX  float64
	prevY  float64
	primed bool
}

func (f *dcBlocker) step(x float64) float64 {
	if !f.primed {
		f.prevX = x
		f.primed = true
	}
	y := x - f.prevX + f.r*f.prevY
	f.prevX = x
	f.prevY = y
	return y
}

// biquad is a direct form I second order section.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

// lowPass returns a Butterworth-like low-pass section with cutoff fc at
// sample rate fs, from the RBJ audio EQ cookbook.
func lowPass(fc, fs, q float64) biquad {
	w := 2 * math.Pi * fc / fs
	cos, sin := math.Cos(w), math.Sin(w)
	alpha := sin / (2 * q)
	a0 := 1 + alpha
	return biquad{
		b0: (1 - cos) / 2 / a0,
		b1: (1 - cos) / a0,
		b2: (1 - cos) / 2 / a0,
		a1: -2 * cos / a0,
		a2: (1 - alpha) / a0,
	}
}

func (f *biquad) step(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}
