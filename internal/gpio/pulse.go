package gpio

import (
	"sync"
	"time"
)

// pulser drives one output line high for a fixed width per pulse.
type pulser struct {
	set   func(int) error
	width time.Duration

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	stopped bool
}

func newPulser(set func(int) error, width time.Duration) *pulser {
	return &pulser{set: set, width: width}
}

// pulse sets the line high and arms the release. A pulse that arrives
// before the previous release restarts the width.
func (p *pulser) pulse() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	if err := p.set(1); err != nil {
		return err
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	// A release already running for an earlier pulse sees a newer
	// generation and leaves the line alone.
	p.gen++
	gen := p.gen
	p.timer = time.AfterFunc(p.width, func() { p.release(gen) })
	return nil
}

// release sets the line low if gen is still the latest pulse.
func (p *pulser) release(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || gen != p.gen {
		return
	}
	_ = p.set(0)
}

// stop cancels any pending release. Later pulses are ignored.
func (p *pulser) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
	}
}
