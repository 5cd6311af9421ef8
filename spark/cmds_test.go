package spark

import (
	"errors"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/RoiRomem/KoiUtils/canbus"
)

type testBus struct {
	txerr, rxecho bool
	txCount       int
	lastTx        canbus.CANMsg
	listeners     map[uint32]chan canbus.CANMsg
}

func (t *testBus) AddListener(deviceId uint32, rxchan chan canbus.CANMsg) {
	t.listeners[deviceId] = rxchan
}

func (t *testBus) SendMsg(msg canbus.CANMsg) error {
	t.lastTx = msg
	t.txCount++
	if t.txerr {
		return errors.New("this is a simulated tx error")
	}

	if t.rxecho {
		c, ok := t.listeners[msg.ID]
		if !ok || c == nil {
			return errors.New("unable to find listener")
		}
		c <- msg // echo back for ACK
	}

	return nil
}

func createTestController() (tBus *testBus, ctrl *Controller) {
	tBus = &testBus{
		listeners: make(map[uint32]chan canbus.CANMsg),
	}

	ctrl = &Controller{
		id:         0x2051,
		bus:        tBus,
		lock:       new(sync.Mutex),
		pendingCmd: make(map[uint16]*BaseCommand),
		rx:         make(chan canbus.CANMsg),
	}

	go ctrl.listen()

	return
}

func TestBaseCommand(t *testing.T) {
	tBus, ctrl := createTestController()

	Convey("aborting before sending errors", t, func() {
		cmd := newFlagCommand(ctrl, CMD_BURN_FLASH)
		So(cmd.Abort(), ShouldNotBeNil)
	})

	Convey("an unacknowledged command retries until it gives up", t, func() {
		cmd := newFlagCommand(ctrl, CMD_BURN_FLASH)
		tBus.txCount = 0
		_, err := cmd.Process()
		So(err, ShouldEqual, ERR_MAX_RETRIES)
		So(tBus.txCount, ShouldEqual, CMD_MAX_RETRIES)

		Convey("aborting returns the right error without sending till max", func() {
			cmd.abort = make(chan struct{})
			go cmd.Abort()
			tBus.txCount = 0
			_, err := cmd.Process()
			So(err, ShouldEqual, ERR_SEND_ABORT)
			So(tBus.txCount, ShouldBeLessThan, CMD_MAX_RETRIES)
		})

		Convey("a tx error surfaces immediately", func() {
			tBus.txerr = true
			_, err := newFlagCommand(ctrl, CMD_BURN_FLASH).Process()
			So(err, ShouldNotBeNil)
			tBus.txerr = false
		})
	})

	Convey("an acknowledged command completes", t, func() {
		tBus.rxecho = true
		cmd := newValueCommand(ctrl, CMD_SET_REFERENCE, 42.5)
		resp, err := cmd.Process()
		So(err, ShouldBeNil)
		So(resp.ID, ShouldEqual, ctrl.id)
		So(tBus.lastTx.Data, ShouldResemble, cmd.msg.Data)
	})
}

func TestCommandFrames(t *testing.T) {
	_, ctrl := createTestController()

	Convey("value commands carry a float32 payload", t, func() {
		cmd := newValueCommand(ctrl, CMD_SET_KP, 0.25)
		So(cmd.msg.ID, ShouldEqual, ctrl.id)
		So(cmd.msg.Cmd, ShouldEqual, CMD_SET_KP)
		So(cmd.msg.Data, ShouldHaveLength, 4)
		So(payloadFloat(cmd.msg), ShouldEqual, 0.25)
	})

	Convey("flag commands carry no payload", t, func() {
		cmd := newFlagCommand(ctrl, CMD_FACTORY_RESET)
		So(cmd.msg.Data, ShouldBeEmpty)
	})

	Convey("range commands round trip through half precision", t, func() {
		So(float16frombits(float16bits(-1)), ShouldEqual, -1)
		So(float16frombits(float16bits(1)), ShouldEqual, 1)
		So(float16frombits(float16bits(0.5)), ShouldEqual, 0.5)
		So(float16frombits(float16bits(0)), ShouldEqual, 0)
	})

	Convey("version commands accept any response payload", t, func() {
		cmd := newVersionCommand(ctrl)
		So(cmd.verify(canbus.CANMsg{Cmd: CMD_VERSION, Data: []byte("24.0.1")}), ShouldBeTrue)
	})
}
