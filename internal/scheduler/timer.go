package scheduler

import (
	"errors"
	"sync"
	"time"
)

// ErrNoTimer is returned by a TimerSource that has no timer to hand out.
var ErrNoTimer = errors.New("no timer available")

// Timer measures time since it was acquired on a monotonic clock.
type Timer interface {
	// Elapsed returns the time since acquisition.
	Elapsed() time.Duration

	// WaitUntil blocks until Elapsed() >= d. It returns immediately if
	// that is already the case.
	WaitUntil(d time.Duration)

	// Release returns the timer to its source.
	Release()
}

// TimerSource hands out timers, one per tick.
type TimerSource interface {
	Acquire() (Timer, error)
}

// MonotonicTimers is a TimerSource backed by the runtime monotonic clock.
type MonotonicTimers struct {
	// Spin is the remaining wait below which WaitUntil busy-waits
	// instead of sleeping.
	Spin time.Duration
}

// Acquire starts a new timer.
func (m MonotonicTimers) Acquire() (Timer, error) {
	return &monotonicTimer{start: time.Now(), spin: m.Spin}, nil
}

type monotonicTimer struct {
	start time.Time
	spin  time.Duration
}

func (t *monotonicTimer) Elapsed() time.Duration { return time.Since(t.start) }

func (t *monotonicTimer) WaitUntil(d time.Duration) {
	for {
		left := d - t.Elapsed()
		if left <= 0 {
			return
		}
		if left > t.spin {
			time.Sleep(left - t.spin)
		}
	}
}

func (t *monotonicTimer) Release() {}

// FakeTimers is a TimerSource for tests. Every timer starts at Offset and
// each WaitUntil lands Lag after its target. Waiting never blocks.
type FakeTimers struct {
	mu sync.Mutex

	// Offset is the elapsed time of a freshly acquired timer.
	Offset time.Duration

	// Lag is added after every wait.
	Lag time.Duration

	// AcquireError, if set, is returned by Acquire.
	AcquireError error

	acquired int
	released int
}

// Acquire returns a fake timer.
func (f *FakeTimers) Acquire() (Timer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AcquireError != nil {
		return nil, f.AcquireError
	}
	f.acquired++
	return &fakeTimer{src: f, now: f.Offset, lag: f.Lag}, nil
}

// Outstanding returns the number of acquired timers not yet released.
func (f *FakeTimers) Outstanding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquired - f.released
}

// Acquired returns the number of timers handed out.
func (f *FakeTimers) Acquired() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquired
}

type fakeTimer struct {
	src      *FakeTimers
	now      time.Duration
	lag      time.Duration
	released bool
}

func (t *fakeTimer) Elapsed() time.Duration { return t.now }

func (t *fakeTimer) WaitUntil(d time.Duration) {
	t.now = max(t.now, d) + t.lag
}

func (t *fakeTimer) Release() {
	if t.released {
		return
	}
	t.released = true
	t.src.mu.Lock()
	t.src.released++
	t.src.mu.Unlock()
}
