package gatt

import (
	"sync"

	"github.com/sweeney/osd-wearable/internal/link"
)

// Notification is one payload recorded by FakeStack.
type Notification struct {
	Char    link.CharID
	Payload []byte
}

// FakeStack is an in-memory Stack. It records notifications and can be
// scripted to fail.
type FakeStack struct {
	mu sync.Mutex

	notifications []Notification
	advertising   bool
	advertiseN    int

	// NotifyError, if set, is returned by Notify.
	NotifyError error

	// AdvertiseError, if set, is returned by Advertise.
	AdvertiseError error
}

// NewFakeStack returns an idle FakeStack.
func NewFakeStack() *FakeStack {
	return &FakeStack{}
}

// Advertise marks the stack as advertising.
func (f *FakeStack) Advertise() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advertiseN++
	if f.AdvertiseError != nil {
		return f.AdvertiseError
	}
	f.advertising = true
	return nil
}

// StopAdvertising marks the stack as not advertising.
func (f *FakeStack) StopAdvertising() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advertising = false
	return nil
}

// Notify records payload.
func (f *FakeStack) Notify(c link.CharID, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NotifyError != nil {
		return f.NotifyError
	}
	f.notifications = append(f.notifications, Notification{Char: c, Payload: append([]byte(nil), payload...)})
	return nil
}

// SetNotifyError sets NotifyError under the lock.
func (f *FakeStack) SetNotifyError(err error) {
	f.mu.Lock()
	f.NotifyError = err
	f.mu.Unlock()
}

// Notifications returns a copy of every recorded notification.
func (f *FakeStack) Notifications() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.notifications...)
}

// NotificationsFor returns the recorded payloads of c.
func (f *FakeStack) NotificationsFor(c link.CharID) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, n := range f.notifications {
		if n.Char == c {
			out = append(out, n.Payload)
		}
	}
	return out
}

// IsAdvertising reports whether Advertise succeeded more recently than
// StopAdvertising was called.
func (f *FakeStack) IsAdvertising() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.advertising
}

// AdvertiseCalls returns the number of Advertise calls.
func (f *FakeStack) AdvertiseCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.advertiseN
}
