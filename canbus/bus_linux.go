package canbus

import (
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

type CANBus struct {
	fd        int
	tx        chan []byte
	lock      sync.Mutex
	listeners map[uint32]chan CANMsg
	open      bool
}

func NewCANBus(ifname string) (bus *CANBus, err error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return
	}

	bus = new(CANBus)

	bus.fd, err = unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return
	}
	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err = unix.Bind(bus.fd, addr); err != nil {
		return
	}

	bus.listeners = make(map[uint32]chan CANMsg)
	bus.tx = make(chan []byte)

	bus.open = true
	go bus.reader()
	go bus.writer()

	return
}

func (c *CANBus) AddListener(deviceId uint32, rxchan chan CANMsg) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.listeners[deviceId] = rxchan
}

func (c *CANBus) SendMsg(msg CANMsg) error {
	raw, err := msg.toByteArray()
	if err != nil {
		return err
	}
	c.tx <- raw
	return nil
}

func (c *CANBus) writer() {
	for c.open {
		msg := <-c.tx
		unix.Write(c.fd, msg)
	}
}

func (c *CANBus) reader() {
	for c.open {
		raw := make([]byte, frameLength)
		unix.Read(c.fd, raw)
		msg, err := msgFromByteArray(raw)
		if err != nil {
			continue
		}

		c.lock.Lock()
		rx, ok := c.listeners[msg.ID]
		c.lock.Unlock()
		if ok {
			rx <- *msg
		}
	}
}
