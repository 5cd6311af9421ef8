package main

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v2"

	"github.com/RoiRomem/KoiUtils/smartmotor"
)

const testYaml = `
bus: can0
motors:
  Arm:
    controller: 0x2051
    encoder: 0x2052
    offset: 113.5
    state: tuning
    closedloop:
      p: 0.1
      d: 0.01
      min: -1
      max: 1
      conversion: 360
  Intake:
    controller: 0x2053
    encoder: 0x2054
`

func TestRobotConfigParsing(t *testing.T) {
	var config RobotConfig

	Convey("parsing is successful", t, func() {
		err := yaml.Unmarshal([]byte(testYaml), &config)
		So(err, ShouldBeNil)
		So(config.Bus, ShouldEqual, "can0")
		So(config.Motors, ShouldHaveLength, 2)

		Convey("a closed loop motor carries its gains and state", func() {
			arm := config.Motors["Arm"]
			So(arm.Controller, ShouldEqual, 0x2051)
			So(arm.Offset, ShouldEqual, 113.5)
			So(smartmotor.MotorState(arm.State), ShouldEqual, smartmotor.Tuning)
			So(arm.ClosedLoop, ShouldNotBeNil)

			cfg := arm.ClosedLoop.toConfig()
			So(cfg.P, ShouldEqual, 0.1)
			So(cfg.D, ShouldEqual, 0.01)
			So(cfg.OutputMin, ShouldEqual, -1)
			So(cfg.PositionConversionFactor, ShouldEqual, 360)
		})

		Convey("a plain motor defaults to comp with no closed loop", func() {
			intake := config.Motors["Intake"]
			So(smartmotor.MotorState(intake.State), ShouldEqual, smartmotor.Comp)
			So(intake.ClosedLoop, ShouldBeNil)
		})
	})

	Convey("an unknown state name is rejected", t, func() {
		err := yaml.Unmarshal([]byte("motors:\n  Arm:\n    state: race\n"), &config)
		So(err, ShouldNotBeNil)
	})
}
