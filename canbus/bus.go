// Package canbus provides framing and transport for the robot CAN bus.
// The motor controllers and absolute encoders on the robot are all CAN
// devices addressed by a 29 bit extended identifier.
package canbus

type CANBusInterface interface {
	SendMsg(msg CANMsg) error
	AddListener(deviceId uint32, rxchan chan CANMsg)
}
