// Package ppg extracts a heart rate from raw photoplethysmogram samples.
//
// Samples are filtered one at a time as they arrive and kept in a bounded
// window. Once the window is full the dominant pulse period is found by
// autocorrelation, after which the window slides forward by a fixed step.
// The package has no I/O and no notion of wall-clock time; the sample rate
// is a configuration constant.
package ppg

import (
	"errors"
	"fmt"
	"math"
)

// Config configures an Extractor.
type Config struct {
	SampleRate     float64 // Hz
	Window         int     // samples needed for an estimate
	Step           int     // samples discarded after each attempt
	Capacity       int     // buffer bound, at least Window
	MinBPM         int
	MaxBPM         int
	MinCorrelation float64 // normalized autocorrelation needed to accept a peak
	CutoffHz       float64 // low-pass cutoff
}

// DefaultConfig matches three sub-samples per 125 ms tick: 24 Hz and a
// 10 second window sliding by a third.
func DefaultConfig() Config {
	return Config{
		SampleRate:     24,
		Window:         240,
		Step:           80,
		Capacity:       240,
		MinBPM:         40,
		MaxBPM:         200,
		MinCorrelation: 0.5,
		CutoffHz:       4,
	}
}

// Validate reports whether c describes a usable extractor.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return errors.New("ppg: sample rate must be positive")
	case c.MinBPM <= 0 || c.MaxBPM <= c.MinBPM:
		return fmt.Errorf("ppg: invalid bpm range [%d, %d]", c.MinBPM, c.MaxBPM)
	case c.Step < 1 || c.Step > c.Window:
		return fmt.Errorf("ppg: step %d must be in [1, window=%d]", c.Step, c.Window)
	case c.Capacity < c.Window:
		return fmt.Errorf("ppg: capacity %d smaller than window %d", c.Capacity, c.Window)
	case c.CutoffHz <= 0 || c.CutoffHz >= c.SampleRate/2:
		return fmt.Errorf("ppg: cutoff %.1f Hz outside (0, %.1f)", c.CutoffHz, c.SampleRate/2)
	}
	minLag, maxLag := c.lags()
	if minLag < 2 || maxLag+1 >= c.Window {
		return fmt.Errorf("ppg: window %d too short for %d bpm at %.1f Hz", c.Window, c.MinBPM, c.SampleRate)
	}
	return nil
}

// lags returns the autocorrelation lag range covering [MinBPM, MaxBPM].
func (c Config) lags() (minLag, maxLag int) {
	minLag = int(math.Floor(60 * c.SampleRate / float64(c.MaxBPM)))
	maxLag = int(math.Ceil(60 * c.SampleRate / float64(c.MinBPM)))
	return minLag, maxLag
}

// Estimate is a heart rate estimate.
type Estimate struct {
	BPM         int
	Correlation float64 // normalized autocorrelation at the chosen lag
}

// Trace holds the intermediate values of the last estimation attempt.
type Trace struct {
	Filtered    []float64 // window samples, oldest first
	MinLag      int
	Correlation []float64 // Correlation[i] is the value at lag MinLag+i
}

// Extractor turns raw PPG samples into heart rate estimates.
// Not safe for concurrent use.
type Extractor struct {
	cfg            Config
	minLag, maxLag int

	buf    *Buffer
	hp     dcBlocker
	lp     biquad
	window []float64
	corr   []float64

	debug bool
	trace Trace

	attempts  int
	estimates int
}

// New returns an Extractor for cfg.
func New(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	minLag, maxLag := cfg.lags()
	return &Extractor{
		cfg:    cfg,
		minLag: minLag,
		maxLag: maxLag,
		buf:    NewBuffer(cfg.Capacity),
		hp:     dcBlocker{r: 0.95},
		lp:     lowPass(cfg.CutoffHz, cfg.SampleRate, math.Sqrt2/2),
		window: make([]float64, cfg.Window),
		// One extra lag on each side for the local maximum test.
		corr: make([]float64, maxLag-minLag+3),
	}, nil
}

// Feed adds one raw sample. It returns an estimate when the window is full
// and a confident pulse period was found; otherwise ok is false.
func (e *Extractor) Feed(raw int) (est Estimate, ok bool) {
	v := e.lp.step(e.hp.step(float64(raw)))
	e.buf.Push(v)
	if e.buf.Len() < e.cfg.Window {
		return Estimate{}, false
	}
	est, ok = e.estimate()
	e.buf.Advance(e.cfg.Step)
	e.attempts++
	if ok {
		e.estimates++
	}
	return est, ok
}

func (e *Extractor) estimate() (Estimate, bool) {
	// Len is exactly Window here: Feed estimates as soon as it is reached
	// and advances straight after.
	x := e.window
	e.buf.CopyTo(x)

	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	var energy float64
	for i, v := range x {
		x[i] = v - mean
		energy += x[i] * x[i]
	}

	for i := range e.corr {
		e.corr[i] = 0
	}
	if energy > 0 {
		for i := range e.corr {
			lag := e.minLag - 1 + i
			var sum float64
			for j := 0; j+lag < len(x); j++ {
				sum += x[j] * x[j+lag]
			}
			e.corr[i] = sum / energy
		}
	}
	if e.debug {
		e.keepTrace()
	}
	if energy == 0 {
		return Estimate{}, false
	}

	// Multiples of the pulse period correlate almost as well as the period
	// itself, so take the shortest lag whose peak is close to the highest.
	highest := math.Inf(-1)
	for i := 1; i < len(e.corr)-1; i++ {
		if e.isPeak(i) {
			highest = math.Max(highest, e.corr[i])
		}
	}
	best, bestR := -1, 0.0
	for i := 1; i < len(e.corr)-1; i++ {
		if e.isPeak(i) && e.corr[i] >= harmonicRatio*highest {
			best, bestR = i, e.corr[i]
			break
		}
	}
	if best < 0 || bestR < e.cfg.MinCorrelation {
		return Estimate{}, false
	}

	lag := float64(e.minLag - 1 + best)
	prev, next := e.corr[best-1], e.corr[best+1]
	if d := prev - 2*bestR + next; d != 0 {
		delta := 0.5 * (prev - next) / d
		lag += math.Max(-0.5, math.Min(0.5, delta))
	}
	bpm := int(math.Round(60 * e.cfg.SampleRate / lag))
	if bpm < e.cfg.MinBPM || bpm > e.cfg.MaxBPM {
		return Estimate{}, false
	}
	return Estimate{BPM: bpm, Correlation: bestR}, true
}

const harmonicRatio = 0.9

func (e *Extractor) isPeak(i int) bool {
	return e.corr[i] >= e.corr[i-1] && e.corr[i] >= e.corr[i+1]
}

func (e *Extractor) keepTrace() {
	e.trace.Filtered = append(e.trace.Filtered[:0], e.window...)
	e.trace.MinLag = e.minLag
	e.trace.Correlation = append(e.trace.Correlation[:0], e.corr[1:len(e.corr)-1]...)
}

// SetDebug enables or disables retention of intermediate values.
func (e *Extractor) SetDebug(on bool) {
	e.debug = on
	if !on {
		e.trace = Trace{}
	}
}

// Trace returns a copy of the intermediate values of the last estimation
// attempt made while debug was enabled.
func (e *Extractor) Trace() Trace {
	return Trace{
		Filtered:    append([]float64(nil), e.trace.Filtered...),
		MinLag:      e.trace.MinLag,
		Correlation: append([]float64(nil), e.trace.Correlation...),
	}
}

// Len returns the number of buffered samples.
func (e *Extractor) Len() int { return e.buf.Len() }

// Cap returns the buffer capacity.
func (e *Extractor) Cap() int { return e.buf.Cap() }

// Stats returns the number of estimation attempts and how many of them
// produced an estimate.
func (e *Extractor) Stats() (attempts, estimates int) { return e.attempts, e.estimates }
