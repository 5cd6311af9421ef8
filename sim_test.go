package main

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/RoiRomem/KoiUtils/canbus"
	"github.com/RoiRomem/KoiUtils/encoder"
)

func TestSimulatedBus(t *testing.T) {
	Convey("simulated encoders broadcast angle telemetry", t, func() {
		config := RobotConfig{Motors: map[string]MotorConfig{
			"Arm": {Controller: 0x2051, Encoder: 0x2052, Offset: 113.5},
		}}
		bus := simulatedBus(config, time.Millisecond)

		rx := make(chan canbus.CANMsg, 8)
		bus.AddListener(0x2052, rx)

		var got canbus.CANMsg
		select {
		case got = <-rx:
		case <-time.After(time.Second):
		}
		So(got.Cmd, ShouldEqual, encoder.CMD_STATUS_ANGLE)
		So(got.Data, ShouldHaveLength, 4)
	})
}
