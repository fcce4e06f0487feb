package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/osd-wearable/internal/config"
	"github.com/sweeney/osd-wearable/internal/gatt"
	"github.com/sweeney/osd-wearable/internal/gpio"
	"github.com/sweeney/osd-wearable/internal/link"
	"github.com/sweeney/osd-wearable/internal/mqtt"
	"github.com/sweeney/osd-wearable/internal/scheduler"
	"github.com/sweeney/osd-wearable/internal/sensor"
	"github.com/sweeney/osd-wearable/internal/status"
	"github.com/sweeney/osd-wearable/internal/telemetry"
	"github.com/sweeney/osd-wearable/internal/web"
)

// spinBelow is the remaining sub-sample wait below which the monotonic
// timer busy-waits.
const spinBelow = 2 * time.Millisecond

// device is the hardware (or its simulation) the daemon runs on.
type device struct {
	reader *sensor.Reader
	haptic gpio.Vibrator
	stack  gatt.Stack
	closes []func() error
}

func (d *device) Close(log logrus.FieldLogger) {
	for i := len(d.closes) - 1; i >= 0; i-- {
		if err := d.closes[i](); err != nil {
			log.WithError(err).Warn("close failed")
		}
	}
}

func scaleOf(cfg *config.Config) sensor.AccelScale {
	return sensor.AccelScale{RangeG: cfg.Sensors.AccelRangeG, Bits: cfg.Sensors.AccelBits}
}

// simulatedStack stands in for the BLE adapter in simulate mode. It
// accepts every notification and logs it at debug level.
type simulatedStack struct {
	log logrus.FieldLogger
}

func (simulatedStack) Advertise() error       { return nil }
func (simulatedStack) StopAdvertising() error { return nil }

func (s simulatedStack) Notify(c link.CharID, payload []byte) error {
	s.log.WithFields(logrus.Fields{"char": c, "payload": fmt.Sprintf("% x", payload)}).Debug("notify")
	return nil
}

// openSimulated returns synthetic sensors and an in-memory BLE stack.
func openSimulated(cfg *config.Config, log logrus.FieldLogger) *device {
	scale := scaleOf(cfg)
	pulse := &sensor.SyntheticPPG{BPM: cfg.Simulate.BPM, SampleRate: cfg.Scheduler().SampleRate()}
	batt := sensor.NewDrainingBattery(cfg.Simulate.DrainPer, 20)
	return &device{
		reader: sensor.NewReader(sensor.RestingAccelerometer{Scale: scale}, pulse, batt, scale),
		haptic: gpio.NopVibrator{},
		stack:  simulatedStack{log: log.WithField("component", "ble")},
	}
}

// openHardware opens the sysfs sensors, the GPIO lines and the BLE
// adapter. GPIO lines that fail to open are logged and skipped.
func openHardware(cfg *config.Config, mailbox *link.Mailbox, log logrus.FieldLogger) (*device, error) {
	d := &device{haptic: gpio.NopVibrator{}}

	if cfg.GPIO.VibratorPin >= 0 {
		v, err := gpio.NewRealVibrator(cfg.GPIO.Chip, cfg.GPIO.VibratorPin, cfg.GPIO.Pulse)
		if err != nil {
			log.WithError(err).Warn("vibrator unavailable, haptic feedback disabled")
		} else {
			d.haptic = v
			d.closes = append(d.closes, v.Close)
		}
	}

	var charge sensor.ChargeInput
	if cfg.GPIO.ChargePin >= 0 {
		c, err := gpio.NewRealChargeInput(cfg.GPIO.Chip, cfg.GPIO.ChargePin, cfg.GPIO.ChargeActiveLow)
		if err != nil {
			log.WithError(err).Warn("charge input unavailable, using power supply status")
		} else {
			charge = c
			d.closes = append(d.closes, c.Close)
		}
	}

	accel, err := sensor.NewIIOAccelerometer(cfg.Sensors.Accelerometer)
	if err != nil {
		d.Close(log)
		return nil, fmt.Errorf("init accelerometer: %w", err)
	}
	pulse, err := sensor.NewIIOPPG(cfg.Sensors.PPG)
	if err != nil {
		d.Close(log)
		return nil, fmt.Errorf("init ppg: %w", err)
	}
	batt, err := sensor.NewPowerSupply(cfg.Sensors.Battery, charge)
	if err != nil {
		d.Close(log)
		return nil, fmt.Errorf("init battery: %w", err)
	}
	d.reader = sensor.NewReader(accel, pulse, batt, scaleOf(cfg))

	if mailbox != nil {
		stack, err := gatt.NewTinyGoStack(cfg.DeviceName, cfg.BLE.AdvertisingInterval,
			gatt.NewEncoder(cfg.HeartRate.ContactBits), mailbox, log)
		if err != nil {
			d.Close(log)
			return nil, fmt.Errorf("init ble: %w", err)
		}
		d.stack = stack
	}
	return d, nil
}

// simulatePeer queues a peer connecting and enabling notifications on
// every characteristic.
func simulatePeer(mailbox *link.Mailbox, now time.Time) {
	mailbox.Post(link.Event{Type: link.EventConnected, Time: now})
	for _, c := range link.Chars {
		mailbox.Post(link.Event{Type: link.EventDescriptorWrite, Time: now, Char: c, Value: []byte{1}})
	}
}

// printState reads every sensor once.
func printState(reader *sensor.Reader, log logrus.FieldLogger) error {
	s, err := reader.ReadAccel()
	if err != nil {
		return err
	}
	fmt.Printf("accelerometer: %.2f m/s²\n", s.Accel)

	if err := reader.EnablePPG(); err != nil {
		return err
	}
	s, err = reader.ReadPPG()
	if derr := reader.DisablePPG(); derr != nil {
		log.WithError(derr).Warn("PPG sensor left powered")
	}
	if err != nil {
		return err
	}
	fmt.Printf("ppg: %d\n", s.PPG)

	s, err = reader.ReadBattery()
	if err != nil {
		return err
	}
	charging := ""
	if s.Charging {
		charging = " (charging)"
	}
	fmt.Printf("battery: %d%%%s, reported %d\n", s.Level, charging, s.Battery)
	return nil
}

func run(cfg *config.Config, printOnly bool, log *logrus.Logger) error {
	simulate := cfg.Simulate.Enabled

	var mailbox *link.Mailbox
	if !printOnly {
		mailbox = link.NewMailbox(cfg.BLE.MailboxSize)
	}

	var dev *device
	if simulate {
		dev = openSimulated(cfg, log)
	} else {
		var err error
		if dev, err = openHardware(cfg, mailbox, log); err != nil {
			return err
		}
	}
	defer dev.Close(log)

	if printOnly {
		return printState(dev.reader, log)
	}

	state := link.NewState()
	handler := link.NewHandler(state, dev.stack, dev.haptic, cfg.BLE.AdvertisingRetry, log.WithField("component", "link"))
	gateway := gatt.NewGateway(state, dev.stack, gatt.NewEncoder(cfg.HeartRate.ContactBits))
	sched, err := scheduler.New(cfg.Scheduler(), state, handler, mailbox, dev.reader, gateway,
		scheduler.MonotonicTimers{Spin: spinBelow}, log.WithField("component", "scheduler"))
	if err != nil {
		return err
	}
	startTime := time.Now()
	detector := telemetry.NewDetector(startTime, time.Now)
	sched.SetObserver(detector)
	app := scheduler.NewApp(sched, dev.reader, cfg.Extractor(), cfg.PPG.Debug, log.WithField("component", "app"))

	// Initialize MQTT
	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	var mqttStatus mqtt.ConnectionStatus = mqtt.NopPublisher{}
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Topic:      cfg.MQTT.Topic,
			BufferSize: cfg.MQTT.Buffer,
			Log:        log.WithField("component", "mqtt"),
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher, mqttStatus = p, p
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(startTime, status.Config{
		DeviceName:  cfg.DeviceName,
		TickMs:      cfg.Tick.Milliseconds(),
		SubSamples:  cfg.SubSamples,
		SampleRate:  cfg.Scheduler().SampleRate(),
		HeartbeatMs: cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		Simulate:    simulate,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.WithError(err).Warn("failed to publish startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTP.Addr).Info("http status server listening")
	}

	if err := handler.Start(); err != nil {
		// RetryAdvertising keeps trying from the tick loop.
		log.WithError(err).Error("advertising failed")
	}
	if err := app.Enable(); err != nil {
		return err
	}
	if simulate {
		simulatePeer(mailbox, time.Now())
	}

	log.WithFields(logrus.Fields{
		"device":    cfg.DeviceName,
		"tick":      cfg.Tick,
		"rate_hz":   cfg.Scheduler().SampleRate(),
		"broker":    cfg.MQTT.Broker,
		"heartbeat": cfg.MQTT.Heartbeat,
		"simulate":  simulate,
	}).Info("started")

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)

	l := &loop{
		app:        app,
		state:      state,
		handler:    handler,
		mailbox:    mailbox,
		gateway:    gateway,
		detector:   detector,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		heartbeat:  cfg.MQTT.Heartbeat,
		now:        time.Now,
		log:        log,
	}
	return l.run(ticker.C, sigCh)
}
