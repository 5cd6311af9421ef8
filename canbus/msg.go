package canbus

import (
	"encoding/binary"
	"errors"
)

const (
	frameLength  = 16
	msgMaxLength = 6

	CAN_EFF_FLAG = 0x80000000
	CAN_EFF_MASK = 0x1fffffff
	CAN_SFF_MASK = 0x7ff
)

// errors
var (
	ERR_DATA_TOO_LONG = errors.New("data length exceeds 6 bytes")
	ERR_FRAME_SHORT   = errors.New("frame is shorter than 16 bytes")
)

type CANMsg struct {
	ID   uint32 // device ID this is being issued for
	Cmd  uint16 // command being issued in this message
	Data []byte // raw data up to six bytes. DLC is taken from len(Data).
}

func (msg *CANMsg) toByteArray() (raw []byte, err error) {
	if len(msg.Data) > msgMaxLength {
		return nil, ERR_DATA_TOO_LONG
	}

	raw = make([]byte, frameLength)

	oid := msg.ID
	if oid != oid&CAN_SFF_MASK {
		oid |= CAN_EFF_FLAG
	}
	binary.LittleEndian.PutUint32(raw[0:4], oid)

	// command occupies the first two payload bytes, DLC covers both
	raw[4] = byte(len(msg.Data) + 2)
	binary.LittleEndian.PutUint16(raw[8:10], msg.Cmd)
	copy(raw[10:], msg.Data)

	return
}

func msgFromByteArray(raw []byte) (msg *CANMsg, err error) {
	if len(raw) < frameLength {
		return nil, ERR_FRAME_SHORT
	}

	msg = new(CANMsg)

	oid := binary.LittleEndian.Uint32(raw[0:4])
	if oid&CAN_EFF_FLAG != 0 {
		msg.ID = oid & CAN_EFF_MASK
	} else {
		msg.ID = oid & CAN_SFF_MASK
	}

	dataLength := int(raw[4]) - 2
	if dataLength < 0 || dataLength > msgMaxLength {
		return nil, ERR_FRAME_SHORT
	}

	msg.Cmd = binary.LittleEndian.Uint16(raw[8:10])
	msg.Data = raw[10 : 10+dataLength]

	return msg, nil
}
