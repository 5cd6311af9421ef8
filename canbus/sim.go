package canbus

import "sync"

// SimDevice emulates a single CAN device. Handle receives every frame
// addressed to the device and returns any response frames.
type SimDevice interface {
	DeviceID() uint32
	Handle(msg CANMsg) []CANMsg
}

// SimBus is an in-memory bus used off-robot and in tests. Frames are still
// round-tripped through the wire codec so framing mistakes surface without
// hardware.
type SimBus struct {
	lock      sync.Mutex
	devices   map[uint32]SimDevice
	listeners map[uint32]chan CANMsg
}

func NewSimBus() *SimBus {
	return &SimBus{
		devices:   make(map[uint32]SimDevice),
		listeners: make(map[uint32]chan CANMsg),
	}
}

func (b *SimBus) Attach(d SimDevice) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.devices[d.DeviceID()] = d
}

func (b *SimBus) AddListener(deviceId uint32, rxchan chan CANMsg) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.listeners[deviceId] = rxchan
}

func (b *SimBus) SendMsg(msg CANMsg) error {
	raw, err := msg.toByteArray()
	if err != nil {
		return err
	}
	decoded, err := msgFromByteArray(raw)
	if err != nil {
		return err
	}

	b.lock.Lock()
	device, ok := b.devices[decoded.ID]
	b.lock.Unlock()
	if !ok {
		return nil // nothing on the bus claims this ID
	}

	for _, resp := range device.Handle(*decoded) {
		b.Inject(resp)
	}
	return nil
}

// Inject delivers a frame to the bus as if a device transmitted it.
// Simulated devices use this for unsolicited telemetry frames.
func (b *SimBus) Inject(msg CANMsg) {
	b.lock.Lock()
	rx, ok := b.listeners[msg.ID]
	b.lock.Unlock()
	if ok {
		rx <- msg
	}
}
