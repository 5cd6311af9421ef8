package encoder

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/RoiRomem/KoiUtils/canbus"
)

// SimEncoder emulates an absolute encoder on a canbus.SimBus. It never
// receives commands; it only broadcasts angle telemetry when told to.
type SimEncoder struct {
	id uint32

	mu    sync.Mutex
	angle float64
}

func NewSimEncoder(id uint32) *SimEncoder {
	return &SimEncoder{id: id}
}

func (s *SimEncoder) DeviceID() uint32 {
	return s.id
}

func (s *SimEncoder) Handle(msg canbus.CANMsg) []canbus.CANMsg {
	return nil // a real encoder ignores inbound frames too
}

// SetAngle positions the simulated shaft, in raw degrees.
func (s *SimEncoder) SetAngle(deg float64) {
	s.mu.Lock()
	s.angle = deg
	s.mu.Unlock()
}

// Emit broadcasts one angle status frame on the bus.
func (s *SimEncoder) Emit(bus *canbus.SimBus) {
	s.mu.Lock()
	angle := s.angle
	s.mu.Unlock()

	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, math.Float32bits(float32(angle)))
	bus.Inject(canbus.CANMsg{
		ID:   s.id,
		Cmd:  CMD_STATUS_ANGLE,
		Data: data,
	})
}
