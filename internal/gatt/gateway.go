package gatt

import (
	"bytes"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sweeney/osd-wearable/internal/link"
)

// ErrNotifyFailed wraps every notification the stack could not deliver.
var ErrNotifyFailed = errors.New("notify failed")

// Stack is the BLE peripheral the gateway notifies through. The
// link.Handler drives its advertising.
type Stack interface {
	link.Advertiser

	// Notify sends payload as a notification of characteristic c.
	Notify(c link.CharID, payload []byte) error
}

// Gateway gates notifications on the link state.
type Gateway struct {
	state *link.State
	stack Stack
	enc   Encoder

	sent   [len(link.Chars)]atomic.Uint64
	failed atomic.Uint64
}

// NewGateway returns a Gateway notifying through stack.
func NewGateway(state *link.State, stack Stack, enc Encoder) *Gateway {
	return &Gateway{state: state, stack: stack, enc: enc}
}

// Notify sends value on characteristic c. It does nothing when no peer
// is connected or the peer has not subscribed to c, and for battery when
// the payload equals the last one delivered. A failed send wraps
// ErrNotifyFailed and leaves the subscription untouched.
func (g *Gateway) Notify(c link.CharID, value float64) error {
	if !c.Valid() {
		return fmt.Errorf("notify characteristic %d: %w", c, link.ErrUnknownCharacteristic)
	}
	if !g.state.Subscribed(c) {
		return nil
	}

	payload, err := g.enc.Encode(c, value)
	if err != nil {
		return err
	}
	if c == link.CharBattery && bytes.Equal(payload, g.state.Subscription(c).LastValue()) {
		return nil
	}

	if err := g.stack.Notify(c, payload); err != nil {
		g.failed.Add(1)
		return fmt.Errorf("%w: %s: %w", ErrNotifyFailed, c, err)
	}
	g.state.SetLastValue(c, payload)
	g.sent[c].Add(1)
	return nil
}

// Stats are the gateway counters.
type Stats struct {
	Sent   map[string]uint64 `json:"sent"`
	Failed uint64            `json:"failed"`
}

// Stats returns a copy of the counters.
func (g *Gateway) Stats() Stats {
	s := Stats{Sent: make(map[string]uint64, len(link.Chars)), Failed: g.failed.Load()}
	for _, c := range link.Chars {
		s.Sent[c.String()] = g.sent[c].Load()
	}
	return s
}
