package link

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	// ErrInvalidState reports a descriptor write that arrived while no
	// peer was connected. It points at a stack race or protocol violation.
	ErrInvalidState = errors.New("invalid state, not connected")

	// ErrUnknownCharacteristic reports a descriptor write for a
	// characteristic that was never registered.
	ErrUnknownCharacteristic = errors.New("unknown characteristic")

	// ErrAdvertise reports that advertising could not be (re)started.
	ErrAdvertise = errors.New("advertising failed")
)

// Advertiser starts and stops BLE advertising.
type Advertiser interface {
	Advertise() error
	StopAdvertising() error
}

// Haptic emits a short vibration. Pulse must not block.
type Haptic interface {
	Pulse()
}

// Advertising is the advertising status shown to the host.
type Advertising string

const (
	AdvertisingOn      Advertising = "ADVERTISING"
	AdvertisingStopped Advertising = "STOPPED"
	AdvertisingFailed  Advertising = "FAILED"
)

// Handler applies peer events to State and triggers their side effects.
type Handler struct {
	state   *State
	adv     Advertiser
	haptic  Haptic
	log     logrus.FieldLogger
	limiter *rate.Limiter

	advertising atomic.Value // Advertising
}

// NewHandler returns a Handler mutating state. Advertising restarts that
// fail are retried by RetryAdvertising at most once per retry interval.
func NewHandler(state *State, adv Advertiser, haptic Haptic, retry time.Duration, log logrus.FieldLogger) *Handler {
	h := &Handler{
		state:   state,
		adv:     adv,
		haptic:  haptic,
		log:     log,
		limiter: rate.NewLimiter(rate.Every(retry), 1),
	}
	h.advertising.Store(AdvertisingStopped)
	return h
}

// Start begins advertising. A failure is recorded and retried like a
// failed restart after disconnect.
func (h *Handler) Start() error {
	if err := h.adv.StopAdvertising(); err != nil {
		h.log.WithError(err).Debug("stop advertising before start")
	}
	return h.advertise()
}

// Handle applies a single event. Returned errors are recoverable: the
// caller logs them and carries on.
func (h *Handler) Handle(ev Event) error {
	switch ev.Type {
	case EventConnected:
		h.state.setConnection(Connected)
		if err := h.adv.StopAdvertising(); err != nil {
			h.log.WithError(err).Warn("stop advertising")
		}
		h.advertising.Store(AdvertisingStopped)
		h.haptic.Pulse()
		return nil

	case EventDisconnected:
		h.state.setConnection(Disconnected)
		h.state.reset()
		h.haptic.Pulse()
		return h.advertise()

	case EventDescriptorWrite:
		if !h.state.IsConnected() {
			return fmt.Errorf("descriptor write to %s: %w", ev.Char, ErrInvalidState)
		}
		if !ev.Char.Valid() {
			return fmt.Errorf("descriptor write to characteristic %d: %w", ev.Char, ErrUnknownCharacteristic)
		}
		h.state.setEnabled(ev.Char, len(ev.Value) > 0 && ev.Value[0] == 1)
		return nil

	default:
		return fmt.Errorf("unhandled event type %d", ev.Type)
	}
}

// RetryAdvertising restarts advertising if a previous attempt failed,
// no peer is connected and the retry limiter allows it.
func (h *Handler) RetryAdvertising() error {
	if h.Advertising() != AdvertisingFailed || h.state.IsConnected() {
		return nil
	}
	if !h.limiter.Allow() {
		return nil
	}
	return h.advertise()
}

// Advertising returns the current advertising status.
func (h *Handler) Advertising() Advertising {
	return h.advertising.Load().(Advertising)
}

func (h *Handler) advertise() error {
	if err := h.adv.Advertise(); err != nil {
		h.advertising.Store(AdvertisingFailed)
		return fmt.Errorf("%w: %w", ErrAdvertise, err)
	}
	h.advertising.Store(AdvertisingOn)
	return nil
}
