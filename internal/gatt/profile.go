// Package gatt encodes sensor values for the peer and delivers them as
// BLE notifications when the link state allows it.
package gatt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/sweeney/osd-wearable/internal/link"
)

// 16-bit UUIDs of the exposed services and characteristics.
const (
	UUIDOSDService    uint16 = 0x85e9
	UUIDAccelerometer uint16 = 0x85ea
	UUIDBattery       uint16 = 0x85eb

	UUIDHeartRateService     uint16 = 0x180D
	UUIDHeartRateMeasurement uint16 = 0x2A37
)

// Heart rate measurement flag bits.
const (
	HRFlagContactDetected  byte = 0x02
	HRFlagContactSupported byte = 0x04
)

// CharUUID maps a characteristic to its 16-bit UUID.
func CharUUID(c link.CharID) uint16 {
	switch c {
	case link.CharAccelerometer:
		return UUIDAccelerometer
	case link.CharBattery:
		return UUIDBattery
	case link.CharHeartRate:
		return UUIDHeartRateMeasurement
	default:
		return 0
	}
}

// ErrEncode reports a value that has no encoding for its characteristic.
var ErrEncode = errors.New("cannot encode value")

// Encoder turns sensor values into characteristic payloads.
type Encoder struct {
	// HRFlags is the first byte of every heart rate measurement.
	HRFlags byte
}

// NewEncoder returns an Encoder. With contactBits the heart rate flags
// claim sensor contact is supported and detected; otherwise they are 0.
func NewEncoder(contactBits bool) Encoder {
	if contactBits {
		return Encoder{HRFlags: HRFlagContactSupported | HRFlagContactDetected}
	}
	return Encoder{}
}

// Encode returns the payload for value on characteristic c.
//
//	battery:       1 byte, percent 0..100
//	accelerometer: float32, IEEE-754 little-endian
//	heart rate:    [flags, bpm] with bpm as uint8
func (e Encoder) Encode(c link.CharID, value float64) ([]byte, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("%s: %w: %v", c, ErrEncode, value)
	}
	switch c {
	case link.CharBattery:
		v := math.Round(value)
		if v < 0 || v > 100 {
			return nil, fmt.Errorf("%s: %w: %v out of range", c, ErrEncode, value)
		}
		return []byte{byte(v)}, nil

	case link.CharAccelerometer:
		return binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(value))), nil

	case link.CharHeartRate:
		v := math.Round(value)
		if v < 0 || v > math.MaxUint8 {
			return nil, fmt.Errorf("%s: %w: %v out of range", c, ErrEncode, value)
		}
		return []byte{e.HRFlags, byte(v)}, nil

	default:
		return nil, fmt.Errorf("%w: %w", ErrEncode, link.ErrUnknownCharacteristic)
	}
}
