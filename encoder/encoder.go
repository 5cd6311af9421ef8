// Package encoder reads an absolute duty-cycle encoder that reports over
// the robot CAN bus. Readings are independent of power cycling, which makes
// them the reference for re-zeroing a motor controller's relative
// position accumulator.
package encoder

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/RoiRomem/KoiUtils/canbus"
)

const (
	// CMD_STATUS_ANGLE frames carry the raw angle as a little-endian float32.
	CMD_STATUS_ANGLE = 0x0110

	// FullRange is the encoder's fixed full-scale range in degrees.
	FullRange = 360.0
)

type DutyCycleEncoder struct {
	id     uint32
	offset float64

	mu  sync.Mutex
	raw float64
	rx  chan canbus.CANMsg
}

// New attaches to the encoder with the given device id and a zero offset.
func New(bus canbus.CANBusInterface, id uint32) *DutyCycleEncoder {
	return NewWithOffset(bus, id, 0)
}

// NewWithOffset attaches to the encoder and corrects every reading by the
// fixed mounting offset, in degrees.
func NewWithOffset(bus canbus.CANBusInterface, id uint32, offset float64) *DutyCycleEncoder {
	e := &DutyCycleEncoder{
		id:     id,
		offset: offset,
		rx:     make(chan canbus.CANMsg),
	}

	// register before returning so no frame is dropped between
	// construction and the first read
	bus.AddListener(e.id, e.rx)
	go e.listen()

	return e
}

// CurrentAngle returns the latest offset-corrected reading wrapped into
// [0, FullRange). An encoder that has never reported - unpowered or
// unwired - reads as zero; callers get no signal that the value is stale.
func (e *DutyCycleEncoder) CurrentAngle() float64 {
	e.mu.Lock()
	raw := e.raw
	e.mu.Unlock()

	angle := math.Mod(raw-e.offset, FullRange)
	if angle < 0 {
		angle += FullRange
	}
	return angle
}

func (e *DutyCycleEncoder) listen() {
	for msg := range e.rx {
		if msg.Cmd != CMD_STATUS_ANGLE || len(msg.Data) < 4 {
			continue
		}
		raw := float64(math.Float32frombits(binary.LittleEndian.Uint32(msg.Data[0:4])))

		e.mu.Lock()
		e.raw = raw
		e.mu.Unlock()
	}
}
