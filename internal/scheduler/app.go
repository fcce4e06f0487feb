package scheduler

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/osd-wearable/internal/ppg"
	"github.com/sweeney/osd-wearable/internal/sensor"
)

// App is the foreground/background lifecycle around a Scheduler.
// Enable, Disable and Tick must be called from the same goroutine.
type App struct {
	sched   *Scheduler
	reader  *sensor.Reader
	ppgCfg  ppg.Config
	debug   bool
	log     logrus.FieldLogger
	enabled atomic.Bool
}

// NewApp returns a disabled App.
func NewApp(sched *Scheduler, reader *sensor.Reader, ppgCfg ppg.Config, debug bool, log logrus.FieldLogger) *App {
	return &App{sched: sched, reader: reader, ppgCfg: ppgCfg, debug: debug, log: log}
}

// Enable powers the PPG sensor, starts a fresh heart rate extractor and
// lets ticks through.
func (a *App) Enable() error {
	if a.enabled.Load() {
		return nil
	}
	ex, err := ppg.New(a.ppgCfg)
	if err != nil {
		return fmt.Errorf("heart rate extractor: %w", err)
	}
	ex.SetDebug(a.debug)
	if err := a.reader.EnablePPG(); err != nil {
		return fmt.Errorf("enable ppg: %w", err)
	}
	a.sched.SetExtractor(ex)
	a.enabled.Store(true)
	a.log.Info("Sampling enabled")
	return nil
}

// Disable stops sampling and powers the PPG sensor down. Peer events
// are still applied so the link state stays current.
func (a *App) Disable() error {
	if !a.enabled.Swap(false) {
		return nil
	}
	a.sched.SetExtractor(nil)
	a.log.Info("Sampling disabled")
	if err := a.reader.DisablePPG(); err != nil {
		return fmt.Errorf("disable ppg: %w", err)
	}
	return nil
}

// Enabled reports whether ticks are running.
func (a *App) Enabled() bool { return a.enabled.Load() }

// Tick runs a scheduler tick when enabled. When disabled it only applies
// pending peer events. It reports whether a full tick ran.
func (a *App) Tick() bool {
	if !a.enabled.Load() {
		a.sched.DrainEvents()
		return false
	}
	a.sched.Tick()
	return true
}

// Scheduler returns the underlying scheduler.
func (a *App) Scheduler() *Scheduler { return a.sched }
