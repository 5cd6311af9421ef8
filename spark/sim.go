package spark

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/RoiRomem/KoiUtils/canbus"
)

// SimNode emulates a motor controller on a canbus.SimBus: it acknowledges
// every command frame, records the deposited parameters, and can broadcast
// position telemetry. Off-robot runs and the driver tests both use it.
type SimNode struct {
	id      uint32
	version string

	mu         sync.Mutex
	gains      map[uint16]float64
	outputMin  float64
	outputMax  float64
	convFactor float64
	reference  float64
	position   float64
	resets     int
	burns      int
}

func NewSimNode(id uint32, version string) *SimNode {
	return &SimNode{
		id:      id,
		version: version,
		gains:   make(map[uint16]float64),
	}
}

func (n *SimNode) DeviceID() uint32 {
	return n.id
}

func (n *SimNode) Handle(msg canbus.CANMsg) []canbus.CANMsg {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch msg.Cmd {
	case CMD_VERSION:
		return []canbus.CANMsg{{
			ID:   n.id,
			Cmd:  CMD_VERSION,
			Data: []byte(n.version),
		}}

	case CMD_FACTORY_RESET:
		n.resets++
		n.gains = make(map[uint16]float64)
		n.outputMin, n.outputMax, n.convFactor = 0, 0, 0

	case CMD_BURN_FLASH:
		n.burns++

	case CMD_SET_KP, CMD_SET_KI, CMD_SET_KD, CMD_SET_KFF:
		n.gains[msg.Cmd] = payloadFloat(msg)

	case CMD_SET_OUTPUT_RANGE:
		if len(msg.Data) >= 4 {
			n.outputMin = float16frombits(binary.LittleEndian.Uint16(msg.Data[0:2]))
			n.outputMax = float16frombits(binary.LittleEndian.Uint16(msg.Data[2:4]))
		}

	case CMD_SET_CONV_FACTOR:
		n.convFactor = payloadFloat(msg)

	case CMD_SET_REFERENCE:
		n.reference = payloadFloat(msg)

	case CMD_SEED_POSITION:
		n.position = payloadFloat(msg)
	}

	// every command is acknowledged by echoing the frame back
	return []canbus.CANMsg{msg}
}

// Gain returns the value last deposited for one of the CMD_SET_K* registers.
func (n *SimNode) Gain(cmd uint16) float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gains[cmd]
}

// Burns reports how many times the configuration was persisted to flash.
func (n *SimNode) Burns() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.burns
}

// Resets reports how many factory resets were issued.
func (n *SimNode) Resets() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resets
}

// Reference returns the last closed loop setpoint.
func (n *SimNode) Reference() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reference
}

// OutputRange returns the configured output range.
func (n *SimNode) OutputRange() (min, max float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.outputMin, n.outputMax
}

// ConversionFactor returns the configured position conversion factor.
func (n *SimNode) ConversionFactor() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.convFactor
}

// Step advances the simulated mechanism a fraction of the way toward the
// current reference and broadcasts a position status frame on the bus.
func (n *SimNode) Step(bus *canbus.SimBus) {
	n.mu.Lock()
	n.position += (n.reference - n.position) * 0.2
	pos := n.position
	n.mu.Unlock()

	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, math.Float32bits(float32(pos)))
	bus.Inject(canbus.CANMsg{
		ID:   n.id,
		Cmd:  CMD_STATUS_POS,
		Data: data,
	})
}

func payloadFloat(msg canbus.CANMsg) float64 {
	if len(msg.Data) < 4 {
		return 0
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(msg.Data[0:4])))
}
