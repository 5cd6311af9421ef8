package main

import (
	"fmt"
	"strings"

	"github.com/edaniels/golog"

	"github.com/RoiRomem/KoiUtils/canbus"
	"github.com/RoiRomem/KoiUtils/encoder"
	"github.com/RoiRomem/KoiUtils/smartmotor"
	"github.com/RoiRomem/KoiUtils/spark"
)

type RobotConfig struct {
	Bus    string                 `yaml:"bus"`
	Motors map[string]MotorConfig `yaml:"motors"`
}

type MotorConfig struct {
	Controller uint32          `yaml:"controller"`
	Encoder    uint32          `yaml:"encoder"`
	Offset     float64         `yaml:"offset"`
	State      StateName       `yaml:"state"`
	ClosedLoop *ClosedLoopYAML `yaml:"closedloop"`
}

// StateName lets the yaml carry motor states by name instead of enum value.
type StateName smartmotor.MotorState

func (s *StateName) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}

	switch strings.ToLower(raw) {
	case "", "comp":
		*s = StateName(smartmotor.Comp)
	case "debug":
		*s = StateName(smartmotor.Debug)
	case "tuning":
		*s = StateName(smartmotor.Tuning)
	default:
		return fmt.Errorf("unknown motor state %q", raw)
	}
	return nil
}

type ClosedLoopYAML struct {
	P          float64 `yaml:"p"`
	I          float64 `yaml:"i"`
	D          float64 `yaml:"d"`
	FF         float64 `yaml:"ff"`
	Min        float64 `yaml:"min"`
	Max        float64 `yaml:"max"`
	Conversion float64 `yaml:"conversion"`
}

func (c *ClosedLoopYAML) toConfig() smartmotor.ClosedLoopConfig {
	return smartmotor.ClosedLoopConfig{
		Gains:                    smartmotor.Gains{P: c.P, I: c.I, D: c.D, FF: c.FF},
		OutputMin:                c.Min,
		OutputMax:                c.Max,
		PositionConversionFactor: c.Conversion,
	}
}

// buildMotors constructs one SmartMotor per config entry, wired to the shared
// bus and dashboard table. The map key becomes the dashboard key prefix.
func buildMotors(bus canbus.CANBusInterface, cfg RobotConfig, dash smartmotor.Dashboard, logger golog.Logger) (map[string]*smartmotor.SmartMotor, error) {
	motors := make(map[string]*smartmotor.SmartMotor, len(cfg.Motors))

	for name, mc := range cfg.Motors {
		ctrl, err := spark.NewController(bus, mc.Controller)
		if err != nil {
			return nil, fmt.Errorf("motor %s: %w", name, err)
		}
		enc := encoder.NewWithOffset(bus, mc.Encoder, mc.Offset)

		var motor *smartmotor.SmartMotor
		if mc.ClosedLoop != nil {
			motor, err = smartmotor.NewWithPID(ctrl, enc, dash, logger, mc.ClosedLoop.toConfig())
			if err != nil {
				return nil, fmt.Errorf("motor %s: %w", name, err)
			}
		} else {
			motor = smartmotor.New(ctrl, enc, dash, logger)
		}

		motor.SetName(name).SetState(smartmotor.MotorState(mc.State))
		motors[name] = motor
	}

	return motors, nil
}
