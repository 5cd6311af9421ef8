package spark

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/RoiRomem/KoiUtils/canbus"
)

const (
	CMD_FACTORY_RESET    = 0x0010
	CMD_SET_KP           = 0x0020
	CMD_SET_KI           = 0x0030
	CMD_SET_KD           = 0x0040
	CMD_SET_KFF          = 0x0050
	CMD_SET_OUTPUT_RANGE = 0x0060
	CMD_SET_CONV_FACTOR  = 0x0070
	CMD_SET_REFERENCE    = 0x0080
	CMD_SEED_POSITION    = 0x0090
	CMD_BURN_FLASH       = 0x00A0
	CMD_STATUS_POS       = 0x0100
	CMD_VERSION          = 0x03E0

	CMD_MAX_RETRIES = 5
	CMD_TIMEOUT     = 5 * time.Millisecond
)

var (
	ERR_MAX_RETRIES = errors.New("CMD_MAX_RETRIES reached while attempting to send")
	ERR_SEND_ABORT  = errors.New("send has been aborted")
)

type BaseCommand struct {
	ctrl  *Controller
	msg   canbus.CANMsg
	ack   chan canbus.CANMsg
	abort chan struct{}

	// anyResp accepts any frame with the right command word as an ack.
	// Query commands set it because their response payload differs from
	// the request.
	anyResp bool
}

// newValueCommand deposits one float parameter on the controller. Values
// travel as little-endian float32, matching the device's register width.
func newValueCommand(ctrl *Controller, cmd uint16, value float64) *BaseCommand {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, math.Float32bits(float32(value)))

	return &BaseCommand{
		ctrl: ctrl,
		msg: canbus.CANMsg{
			ID:   ctrl.id,
			Cmd:  cmd,
			Data: data,
		},
	}
}

// newRangeCommand carries the closed loop output range. Only six payload
// bytes fit in a frame, so the pair travels as half precision floats; the
// range only ever spans [-1, 1] so the reduced precision is irrelevant.
func newRangeCommand(ctrl *Controller, min, max float64) *BaseCommand {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint16(data[0:2], float16bits(min))
	binary.LittleEndian.PutUint16(data[2:4], float16bits(max))

	return &BaseCommand{
		ctrl: ctrl,
		msg: canbus.CANMsg{
			ID:   ctrl.id,
			Cmd:  CMD_SET_OUTPUT_RANGE,
			Data: data,
		},
	}
}

// newFlagCommand carries no payload (factory reset, burn flash).
func newFlagCommand(ctrl *Controller, cmd uint16) *BaseCommand {
	return &BaseCommand{
		ctrl: ctrl,
		msg: canbus.CANMsg{
			ID:  ctrl.id,
			Cmd: cmd,
		},
	}
}

// newVersionCommand requests the firmware version string.
func newVersionCommand(ctrl *Controller) *BaseCommand {
	return &BaseCommand{
		ctrl: ctrl,
		msg: canbus.CANMsg{
			ID:  ctrl.id,
			Cmd: CMD_VERSION,
		},
		anyResp: true,
	}
}

// Process sends the command and waits for the controller to acknowledge it.
// Unacknowledged frames are resent every CMD_TIMEOUT up to CMD_MAX_RETRIES.
// Can be canceled through Abort.
// Returns the response frame for upstream processing should it be necessary.
func (c *BaseCommand) Process() (resp canbus.CANMsg, err error) {
	if c.ack == nil {
		c.ack = make(chan canbus.CANMsg)
	}
	if c.abort == nil {
		c.abort = make(chan struct{})
	}

	// register the ack callback with the controller's listener
	c.ctrl.registerPending(c)
	defer c.ctrl.releasePending(c)

	err = c.ctrl.sendMsg(c.msg)
	if err != nil {
		return resp, err
	}

	for i := 1; i < CMD_MAX_RETRIES; i++ {
		select {
		case resp := <-c.ack:
			if c.verify(resp) {
				return resp, nil
			}

		case <-c.abort:
			return resp, ERR_SEND_ABORT

		case <-time.After(CMD_TIMEOUT):
			err = c.ctrl.sendMsg(c.msg)
			if err != nil {
				return resp, err
			}
		}
	}

	return resp, ERR_MAX_RETRIES
}

func (c *BaseCommand) verify(msg canbus.CANMsg) bool {
	if c.anyResp {
		return true
	}
	return bytes.Equal(c.msg.Data, msg.Data)
}

func (c *BaseCommand) ID() uint16 {
	return c.msg.Cmd
}

func (c *BaseCommand) Msg() canbus.CANMsg {
	return c.msg
}

func (c *BaseCommand) Abort() error {
	if c.abort == nil {
		return errors.New("send not yet attempted")
	}

	close(c.abort)
	return nil
}

func (c *BaseCommand) Ack(msg canbus.CANMsg) {
	c.ack <- msg
}

func float16bits(v float64) uint16 {
	bits := math.Float32bits(float32(v))
	sign := uint16(bits >> 16 & 0x8000)
	exp := int32(bits>>23&0xff) - 127 + 15
	if exp <= 0 {
		return sign // flush subnormals to zero
	}
	if exp >= 0x1f {
		return sign | 0x7c00
	}
	return sign | uint16(exp)<<10 | uint16(bits>>13&0x3ff)
}

func float16frombits(h uint16) float64 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h >> 10 & 0x1f)
	frac := uint32(h & 0x3ff)
	switch exp {
	case 0:
		return float64(math.Float32frombits(sign)) // zero, subnormals flushed
	case 0x1f:
		return float64(math.Float32frombits(sign | 0xff<<23 | frac<<13))
	}
	return float64(math.Float32frombits(sign | (exp-15+127)<<23 | frac<<13))
}
