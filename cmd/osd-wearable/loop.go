package main

import (
	"os"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/osd-wearable/internal/gatt"
	"github.com/sweeney/osd-wearable/internal/link"
	"github.com/sweeney/osd-wearable/internal/mqtt"
	"github.com/sweeney/osd-wearable/internal/scheduler"
	"github.com/sweeney/osd-wearable/internal/status"
	"github.com/sweeney/osd-wearable/internal/telemetry"
)

// loop drives the app on every tick and handles signals.
type loop struct {
	app        *scheduler.App
	state      *link.State
	handler    *link.Handler
	mailbox    *link.Mailbox
	gateway    *gatt.Gateway
	detector   *telemetry.Detector
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	heartbeat  time.Duration
	now        func() time.Time
	log        logrus.FieldLogger
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGUSR1:
		return "SIGUSR1"
	case syscall.SIGUSR2:
		return "SIGUSR2"
	}
	return "UNKNOWN"
}

func (l *loop) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			name := signalName(s)
			switch s {
			case syscall.SIGUSR1:
				if err := l.app.Disable(); err != nil {
					l.log.WithError(err).Error("disable sampling")
				}
				l.update()
				l.system("SAMPLING_OFF", name)
				continue
			case syscall.SIGUSR2:
				if err := l.app.Enable(); err != nil {
					l.log.WithError(err).Error("enable sampling")
				}
				l.update()
				l.system("SAMPLING_ON", name)
				continue
			}
			l.log.WithField("signal", name).Info("shutting down")
			if err := l.app.Disable(); err != nil {
				l.log.WithError(err).Warn("disable sampling")
			}
			l.update()
			l.system("SHUTDOWN", name)
			return nil

		case <-tick:
			l.app.Tick()

			for _, ev := range l.detector.Drain() {
				l.log.WithFields(logrus.Fields{"event": ev.Type, "char": ev.Char}).Info("link event")
				if err := l.publisher.Publish(ev); err != nil {
					// Don't stop sampling on publish failure
					l.log.WithError(err).Warn("publish error")
				}
			}

			l.update()

			if hb := l.detector.CheckHeartbeat(l.now(), l.heartbeat); hb != nil {
				l.log.WithFields(logrus.Fields{
					"uptime":     hb.Uptime,
					"connected":  hb.Counts.Connected,
					"subscribe":  hb.Counts.Subscribe,
					"violations": hb.Counts.ProtocolViolation,
				}).Info("heartbeat")
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					l.tracker.SetNetwork(net)
				}
				snap := l.tracker.Snapshot()
				ev := mqtt.SystemEvent{
					Timestamp:  hb.Timestamp,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := l.publisher.PublishSystem(ev); err != nil {
					l.log.WithError(err).Warn("heartbeat publish error")
				}
			}
		}
	}
}

// update refreshes the status tracker from the live state.
func (l *loop) update() {
	subs := make(map[string]bool, len(link.Chars))
	for c, on := range l.state.Subscriptions() {
		subs[c.String()] = on
	}
	sched := l.app.Scheduler()
	l.tracker.Update(status.Link{
		Connection:    l.state.Connection().String(),
		Advertising:   string(l.handler.Advertising()),
		Subscriptions: subs,
		DroppedEvents: l.mailbox.Dropped(),
	}, l.app.Enabled(), sched.Readings(), sched.Stats(), l.gateway.Stats())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

// system publishes a retained lifecycle event carrying a status snapshot.
func (l *loop) system(event, reason string) {
	snap := l.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  l.now(),
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := l.publisher.PublishSystem(ev); err != nil {
		l.log.WithError(err).WithField("event", event).Warn("system publish failed")
	} else {
		l.log.WithField("event", event).Info("published system event")
	}
}
