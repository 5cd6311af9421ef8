//go:build !linux

package canbus

import "errors"

// The socketcan transport only exists on linux. Off-robot development on
// other platforms goes through SimBus instead.

type CANBus struct{}

func NewCANBus(ifname string) (*CANBus, error) {
	return nil, errors.New("socketcan is only available on linux, use -sim")
}

func (c *CANBus) AddListener(deviceId uint32, rxchan chan CANMsg) {}

func (c *CANBus) SendMsg(msg CANMsg) error {
	return errors.New("socketcan is only available on linux")
}
