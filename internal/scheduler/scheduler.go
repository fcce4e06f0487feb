// Package scheduler runs the periodic sampling tick: it applies pending
// peer events, sub-samples the PPG sensor into the heart rate extractor,
// reads the accelerometer and battery and pushes notifications.
package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/osd-wearable/internal/link"
	"github.com/sweeney/osd-wearable/internal/ppg"
	"github.com/sweeney/osd-wearable/internal/sensor"
)

// Config configures a Scheduler.
type Config struct {
	// Interval is the host tick period and the tick budget.
	Interval time.Duration

	// SubSamples is the number of PPG reads per tick.
	SubSamples int

	// BatteryEvery reads the battery once every this many ticks.
	BatteryEvery int
}

// Validate reports whether c is usable.
func (c Config) Validate() error {
	switch {
	case c.Interval <= 0:
		return fmt.Errorf("scheduler: interval %v must be positive", c.Interval)
	case c.SubSamples < 1:
		return fmt.Errorf("scheduler: sub-samples %d must be at least 1", c.SubSamples)
	case c.BatteryEvery < 1:
		return fmt.Errorf("scheduler: battery cadence %d must be at least 1", c.BatteryEvery)
	}
	return nil
}

// SampleRate returns the resulting PPG sample rate in Hz.
func (c Config) SampleRate() float64 {
	return float64(c.SubSamples) / c.Interval.Seconds()
}

// Notifier delivers values to the peer.
type Notifier interface {
	Notify(c link.CharID, value float64) error
}

// EventObserver is told about every peer event after it was applied.
// err is the error Handle returned for it, if any.
type EventObserver interface {
	LinkEvent(ev link.Event, err error)
}

// Readings are the most recent sensor values.
type Readings struct {
	HeartRate      int       `json:"heart_rate"`
	HeartRateFound bool      `json:"heart_rate_found"`
	HeartRateAt    time.Time `json:"heart_rate_at,omitzero"`

	Accel   float64 `json:"accel"`
	AccelOK bool    `json:"accel_ok"`

	Battery   int  `json:"battery"`
	Level     int  `json:"level"`
	Charging  bool `json:"charging"`
	BatteryOK bool `json:"battery_ok"`
}

// Stats are the scheduler counters.
type Stats struct {
	Ticks              uint64            `json:"ticks"`
	Events             uint64            `json:"events"`
	ProtocolViolations uint64            `json:"protocol_violations"`
	PPGSamples         uint64            `json:"ppg_samples"`
	MissedSubSamples   uint64            `json:"missed_sub_samples"`
	TimerFailures      uint64            `json:"timer_failures"`
	SensorFailures     map[string]uint64 `json:"sensor_failures"`
	NotifyFailures     uint64            `json:"notify_failures"`
	Estimates          uint64            `json:"estimates"`
	Inconclusive       uint64            `json:"inconclusive"`
}

// Scheduler performs one tick at a time. Tick must only be called from a
// single goroutine; Readings and Stats may be called from any.
type Scheduler struct {
	cfg      Config
	state    *link.State
	handler  *link.Handler
	mailbox  *link.Mailbox
	reader   *sensor.Reader
	notifier Notifier
	timers   TimerSource
	log      logrus.FieldLogger
	observer EventObserver

	extractor *ppg.Extractor

	ticks           atomic.Uint64
	events          atomic.Uint64
	violations      atomic.Uint64
	ppgSamples      atomic.Uint64
	missed          atomic.Uint64
	timerFailures   atomic.Uint64
	ppgFailures     atomic.Uint64
	accelFailures   atomic.Uint64
	batteryFailures atomic.Uint64
	notifyFailures  atomic.Uint64
	estimates       atomic.Uint64
	inconclusive    atomic.Uint64

	mu       sync.RWMutex
	readings Readings
}

// New returns a Scheduler. It has no extractor until SetExtractor is
// called, and skips PPG sampling until then.
func New(cfg Config, state *link.State, handler *link.Handler, mailbox *link.Mailbox,
	reader *sensor.Reader, notifier Notifier, timers TimerSource, log logrus.FieldLogger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		cfg:      cfg,
		state:    state,
		handler:  handler,
		mailbox:  mailbox,
		reader:   reader,
		notifier: notifier,
		timers:   timers,
		log:      log,
	}, nil
}

// SetObserver registers o to be told about applied peer events.
func (s *Scheduler) SetObserver(o EventObserver) { s.observer = o }

// SetExtractor replaces the heart rate extractor. The previous heart
// rate reading is forgotten.
func (s *Scheduler) SetExtractor(e *ppg.Extractor) {
	s.extractor = e
	s.mu.Lock()
	s.readings.HeartRate = 0
	s.readings.HeartRateFound = false
	s.mu.Unlock()
}

// Tick runs one scheduling period.
func (s *Scheduler) Tick() {
	n := s.ticks.Add(1)

	s.DrainEvents()
	if err := s.handler.RetryAdvertising(); err != nil {
		s.log.WithError(err).Warn("Advertising retry failed")
	}

	est, found := s.samplePPG()

	if sample, err := s.reader.ReadAccel(); err != nil {
		s.accelFailures.Add(1)
		s.log.WithError(err).Debug("Accelerometer read skipped")
		s.setAccel(0, false)
	} else {
		s.setAccel(sample.Accel, true)
		s.notify(link.CharAccelerometer, sample.Accel)
	}

	if (n-1)%uint64(s.cfg.BatteryEvery) == 0 {
		if sample, err := s.reader.ReadBattery(); err != nil {
			s.batteryFailures.Add(1)
			s.log.WithError(err).Debug("Battery read skipped")
		} else {
			s.setBattery(sample)
			s.notify(link.CharBattery, float64(sample.Battery))
		}
	}

	if found {
		s.notify(link.CharHeartRate, float64(est.BPM))
	}
}

// DrainEvents applies every queued peer event.
func (s *Scheduler) DrainEvents() int {
	return s.mailbox.Drain(func(ev link.Event) {
		s.events.Add(1)
		err := s.handler.Handle(ev)
		switch {
		case errors.Is(err, link.ErrInvalidState):
			s.violations.Add(1)
			s.log.WithError(err).WithField("char", ev.Char).Warn("Protocol violation")
		case err != nil:
			s.log.WithError(err).WithField("event", ev.Type).Error("Event handling failed")
		default:
			s.log.WithFields(logrus.Fields{"event": ev.Type, "char": ev.Char}).Debug("Event applied")
		}
		if s.observer != nil {
			s.observer.LinkEvent(ev, err)
		}
	})
}

// samplePPG reads SubSamples PPG values spread evenly over the tick and
// feeds them to the extractor. It returns the last estimate produced.
func (s *Scheduler) samplePPG() (last ppg.Estimate, found bool) {
	if s.extractor == nil {
		return ppg.Estimate{}, false
	}

	timer, err := s.timers.Acquire()
	if err != nil {
		s.timerFailures.Add(1)
		s.log.WithError(err).Warn("No timer, PPG sampling skipped")
		return ppg.Estimate{}, false
	}
	defer timer.Release()

	sub := s.cfg.SubSamples
	for i := 0; i < sub; i++ {
		timer.WaitUntil(s.cfg.Interval * time.Duration(i) / time.Duration(sub))
		if timer.Elapsed() >= s.cfg.Interval {
			s.missed.Add(uint64(sub - i))
			s.log.WithField("missed", sub-i).Debug("Tick over budget")
			break
		}

		sample, err := s.reader.ReadPPG()
		if err != nil {
			s.ppgFailures.Add(1)
			s.log.WithError(err).Debug("PPG read skipped")
			continue
		}
		s.ppgSamples.Add(1)

		attempts, _ := s.extractor.Stats()
		est, ok := s.extractor.Feed(sample.PPG)
		if after, _ := s.extractor.Stats(); after == attempts {
			continue
		}
		if ok {
			s.estimates.Add(1)
			last, found = est, true
			s.log.WithField("bpm", est.BPM).Debug("Heart rate estimate")
		} else {
			s.inconclusive.Add(1)
		}
		s.setHeartRate(est.BPM, ok)
	}
	return last, found
}

func (s *Scheduler) notify(c link.CharID, v float64) {
	if err := s.notifier.Notify(c, v); err != nil {
		s.notifyFailures.Add(1)
		s.log.WithError(err).WithField("char", c).Warn("Notification failed")
	}
}

func (s *Scheduler) setHeartRate(bpm int, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings.HeartRateFound = found
	if found {
		s.readings.HeartRate = bpm
		s.readings.HeartRateAt = time.Now()
	}
}

func (s *Scheduler) setAccel(v float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings.Accel, s.readings.AccelOK = v, ok
}

func (s *Scheduler) setBattery(sample sensor.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings.Battery = sample.Battery
	s.readings.Level = sample.Level
	s.readings.Charging = sample.Charging
	s.readings.BatteryOK = true
}

// Readings returns the most recent sensor values.
func (s *Scheduler) Readings() Readings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readings
}

// Stats returns a copy of the counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Ticks:              s.ticks.Load(),
		Events:             s.events.Load(),
		ProtocolViolations: s.violations.Load(),
		PPGSamples:         s.ppgSamples.Load(),
		MissedSubSamples:   s.missed.Load(),
		TimerFailures:      s.timerFailures.Load(),
		SensorFailures: map[string]uint64{
			"ppg":           s.ppgFailures.Load(),
			"accelerometer": s.accelFailures.Load(),
			"battery":       s.batteryFailures.Load(),
		},
		NotifyFailures: s.notifyFailures.Load(),
		Estimates:      s.estimates.Load(),
		Inconclusive:   s.inconclusive.Load(),
	}
}
