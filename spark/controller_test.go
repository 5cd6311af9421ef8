package spark

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/RoiRomem/KoiUtils/canbus"
	"github.com/RoiRomem/KoiUtils/smartmotor"
)

func simController(version string) (*canbus.SimBus, *SimNode, *Controller, error) {
	bus := canbus.NewSimBus()
	node := NewSimNode(0x2051, version)
	bus.Attach(node)
	ctrl, err := NewController(bus, 0x2051)
	return bus, node, ctrl, err
}

func TestNewController(t *testing.T) {
	Convey("connecting to matching firmware succeeds", t, func() {
		_, _, ctrl, err := simController("24.0.1")
		So(err, ShouldBeNil)
		So(ctrl.Firmware(), ShouldEqual, "24.0.1")
	})

	Convey("a development build is let through", t, func() {
		_, _, ctrl, err := simController("DEV")
		So(err, ShouldBeNil)
		So(ctrl.Firmware(), ShouldEqual, "DEV")
	})

	Convey("stale firmware is rejected", t, func() {
		_, _, _, err := simController("23.1.0")
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "firmware")
	})
}

func TestConfigure(t *testing.T) {
	cfg := smartmotor.ClosedLoopConfig{
		Gains:                    smartmotor.Gains{P: 0.25, I: 0.5, D: 0.125, FF: 0.0625},
		OutputMin:                -1,
		OutputMax:                1,
		PositionConversionFactor: 360,
	}

	Convey("a full configure resets, writes every register and burns", t, func() {
		_, node, ctrl, err := simController("24.0.1")
		So(err, ShouldBeNil)

		So(ctrl.Configure(cfg, smartmotor.ResetSafeParameters, smartmotor.PersistParameters), ShouldBeNil)
		So(node.Resets(), ShouldEqual, 1)
		So(node.Gain(CMD_SET_KP), ShouldEqual, 0.25)
		So(node.Gain(CMD_SET_KI), ShouldEqual, 0.5)
		So(node.Gain(CMD_SET_KD), ShouldEqual, 0.125)
		So(node.Gain(CMD_SET_KFF), ShouldEqual, 0.0625)

		min, max := node.OutputRange()
		So(min, ShouldEqual, -1)
		So(max, ShouldEqual, 1)
		So(node.ConversionFactor(), ShouldEqual, 360)
		So(node.Burns(), ShouldEqual, 1)
	})

	Convey("a volatile patch neither resets nor burns", t, func() {
		_, node, ctrl, err := simController("24.0.1")
		So(err, ShouldBeNil)

		So(ctrl.Configure(cfg, smartmotor.NoResetSafeParameters, smartmotor.Volatile), ShouldBeNil)
		So(node.Resets(), ShouldEqual, 0)
		So(node.Burns(), ShouldEqual, 0)
	})
}

func TestGainPatch(t *testing.T) {
	Convey("SetClosedLoopGains writes the four registers and persists", t, func() {
		_, node, ctrl, err := simController("24.0.1")
		So(err, ShouldBeNil)

		So(ctrl.SetClosedLoopGains(0.5, 0.25, 0.125, 0.0625), ShouldBeNil)
		So(node.Gain(CMD_SET_KP), ShouldEqual, 0.5)
		So(node.Gain(CMD_SET_KI), ShouldEqual, 0.25)
		So(node.Gain(CMD_SET_KD), ShouldEqual, 0.125)
		So(node.Gain(CMD_SET_KFF), ShouldEqual, 0.0625)
		So(node.Burns(), ShouldEqual, 1)
	})
}

func TestSetpoints(t *testing.T) {
	Convey("setpoints land on the device unchanged", t, func() {
		_, node, ctrl, err := simController("24.0.1")
		So(err, ShouldBeNil)

		So(ctrl.SetReference(42.5), ShouldBeNil)
		So(node.Reference(), ShouldEqual, 42.5)

		So(ctrl.SetPosition(113.5), ShouldBeNil)
	})
}

func TestPositionTelemetry(t *testing.T) {
	Convey("status frames update the cached position", t, func() {
		bus, node, ctrl, err := simController("24.0.1")
		So(err, ShouldBeNil)
		So(ctrl.Position(), ShouldEqual, 0)

		So(ctrl.SetReference(100), ShouldBeNil)
		node.Step(bus)

		// the listener runs on its own goroutine, give it a beat
		deadline := time.Now().Add(time.Second)
		for ctrl.Position() == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		So(ctrl.Position(), ShouldEqual, 20)
	})
}
