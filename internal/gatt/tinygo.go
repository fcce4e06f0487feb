//go:build linux

package gatt

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/sweeney/osd-wearable/internal/link"
)

// TinyGoStack is a BlueZ peripheral built on tinygo.org/x/bluetooth.
//
// Stack callbacks run on D-Bus goroutines; they only post events to the
// mailbox. BlueZ handles CCCD writes itself, so a subscription change is
// signalled by the peer writing 1 (enable) or 0 (disable) to the
// characteristic value.
type TinyGoStack struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
	chars   [len(link.Chars)]bluetooth.Characteristic
	mailbox *link.Mailbox
	log     logrus.FieldLogger
	reg     registration
}

// NewTinyGoStack enables the default adapter, registers the OSD and heart
// rate services and configures (but does not start) advertising.
func NewTinyGoStack(name string, interval time.Duration, enc Encoder, mailbox *link.Mailbox, log logrus.FieldLogger) (*TinyGoStack, error) {
	s := &TinyGoStack{
		adapter: bluetooth.DefaultAdapter,
		mailbox: mailbox,
		log:     log,
	}

	if err := s.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable adapter: %w", err)
	}

	s.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		ev := link.Event{Type: link.EventDisconnected, Time: time.Now()}
		if connected {
			ev.Type = link.EventConnected
		}
		s.post(ev)
	})

	osd := &bluetooth.Service{
		UUID: bluetooth.New16BitUUID(UUIDOSDService),
		Characteristics: []bluetooth.CharacteristicConfig{
			s.charConfig(link.CharBattery, []byte{0}),
			s.charConfig(link.CharAccelerometer, make([]byte, 4)),
		},
	}
	if err := s.adapter.AddService(osd); err != nil {
		return nil, fmt.Errorf("add osd service: %w", err)
	}

	hrInit, _ := enc.Encode(link.CharHeartRate, 0)
	hrs := &bluetooth.Service{
		UUID: bluetooth.New16BitUUID(UUIDHeartRateService),
		Characteristics: []bluetooth.CharacteristicConfig{
			s.charConfig(link.CharHeartRate, hrInit),
		},
	}
	if err := s.adapter.AddService(hrs); err != nil {
		return nil, fmt.Errorf("add heart rate service: %w", err)
	}

	s.adv = s.adapter.DefaultAdvertisement()
	s.reg.start = s.adv.Start
	err := s.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName: name,
		ServiceUUIDs: []bluetooth.UUID{
			bluetooth.New16BitUUID(UUIDOSDService),
			bluetooth.New16BitUUID(UUIDHeartRateService),
		},
		Interval: bluetooth.NewDuration(interval),
	})
	if err != nil {
		return nil, fmt.Errorf("configure advertisement: %w", err)
	}

	return s, nil
}

func (s *TinyGoStack) charConfig(c link.CharID, initial []byte) bluetooth.CharacteristicConfig {
	return bluetooth.CharacteristicConfig{
		Handle: &s.chars[c],
		UUID:   bluetooth.New16BitUUID(CharUUID(c)),
		Value:  initial,
		Flags: bluetooth.CharacteristicReadPermission |
			bluetooth.CharacteristicWritePermission |
			bluetooth.CharacteristicNotifyPermission,
		WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
			if offset != 0 {
				return
			}
			s.post(link.Event{
				Type:  link.EventDescriptorWrite,
				Time:  time.Now(),
				Char:  c,
				Value: append([]byte(nil), value...),
			})
		},
	}
}

func (s *TinyGoStack) post(ev link.Event) {
	if !s.mailbox.Post(ev) {
		s.log.WithField("event", ev.Type).Warn("mailbox full, event dropped")
	}
}

// Advertise registers the advertisement with BlueZ once. Later calls
// are no-ops: the registration stays in place across connections.
func (s *TinyGoStack) Advertise() error {
	return s.reg.ensure()
}

// StopAdvertising leaves the advertisement registered.
//
// Advertisement.Start is also where the library subscribes to the
// Device1 PropertiesChanged signals that drive the connect handler, and
// Advertisement.Stop removes them. Unregistering on connect would
// therefore silence the disconnect callback. BlueZ suspends a registered
// advertisement while the peripheral connection is up and resumes it
// after the disconnect.
func (s *TinyGoStack) StopAdvertising() error {
	return nil
}

// Notify writes payload to the characteristic value, which BlueZ sends
// to subscribed centrals.
func (s *TinyGoStack) Notify(c link.CharID, payload []byte) error {
	if !c.Valid() {
		return link.ErrUnknownCharacteristic
	}
	_, err := s.chars[c].Write(payload)
	return err
}
