//go:build !linux

package gatt

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/osd-wearable/internal/link"
)

// TinyGoStack is not available on non-Linux platforms.
type TinyGoStack struct{}

// NewTinyGoStack returns an error on non-Linux platforms.
func NewTinyGoStack(name string, interval time.Duration, enc Encoder, mailbox *link.Mailbox, log logrus.FieldLogger) (*TinyGoStack, error) {
	return nil, errors.New("gatt: bluetooth stack not supported on this platform (requires Linux)")
}

// Advertise is not implemented on non-Linux platforms.
func (s *TinyGoStack) Advertise() error { return errors.New("gatt: not supported") }

// StopAdvertising is not implemented on non-Linux platforms.
func (s *TinyGoStack) StopAdvertising() error { return nil }

// Notify is not implemented on non-Linux platforms.
func (s *TinyGoStack) Notify(c link.CharID, payload []byte) error {
	return errors.New("gatt: not supported")
}
