// Package spark drives a brushless motor controller over the robot CAN bus.
// The device runs the closed loop itself; this package only deposits
// parameters and setpoints and mirrors the telemetry it broadcasts.
package spark

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/Masterminds/semver"

	"github.com/RoiRomem/KoiUtils/canbus"
	"github.com/RoiRomem/KoiUtils/smartmotor"
)

const (
	FIRMWARE_VERSION = "~24.0"
)

type Controller struct {
	id         uint32
	bus        canbus.CANBusInterface
	lock       *sync.Mutex
	pendingCmd map[uint16]*BaseCommand
	rx         chan canbus.CANMsg

	firmware string
	position float64
}

func NewController(bus canbus.CANBusInterface, id uint32) (c *Controller, err error) {
	c = &Controller{
		id:         id,
		bus:        bus,
		lock:       new(sync.Mutex),
		pendingCmd: make(map[uint16]*BaseCommand),
		rx:         make(chan canbus.CANMsg),
	}

	go c.listen()

	// check the firmware version is acceptable before touching anything else
	resp, err := newVersionCommand(c).Process()
	if err != nil {
		return nil, err
	}

	c.firmware = string(resp.Data)
	if c.firmware == "DEV" {
		// bench controller running a development build, let it through
		return c, nil
	}

	semVer, err := semver.NewVersion(c.firmware)
	if err != nil {
		return nil, fmt.Errorf("controller %d reports unparseable firmware %q: %w", id, c.firmware, err)
	}

	constraint, err := semver.NewConstraint(FIRMWARE_VERSION)
	if err != nil {
		return nil, err
	}

	if !constraint.Check(semVer) {
		return nil, fmt.Errorf("unable to use controller %d: firmware %s - require %s", id, c.firmware, FIRMWARE_VERSION)
	}

	return c, nil
}

// Firmware returns the version string reported by the device at connect.
func (c *Controller) Firmware() string {
	return c.firmware
}

// Configure applies a full closed loop configuration. With ResetSafeParameters
// the device is factory reset first so unnamed parameters return to safe
// defaults; with PersistParameters the result is burned to flash.
func (c *Controller) Configure(cfg smartmotor.ClosedLoopConfig, reset smartmotor.ResetMode, persist smartmotor.PersistMode) error {
	if reset == smartmotor.ResetSafeParameters {
		if _, err := newFlagCommand(c, CMD_FACTORY_RESET).Process(); err != nil {
			return fmt.Errorf("factory reset: %w", err)
		}
	}

	if err := c.applyGains(cfg.P, cfg.I, cfg.D, cfg.FF); err != nil {
		return err
	}
	if _, err := newRangeCommand(c, cfg.OutputMin, cfg.OutputMax).Process(); err != nil {
		return fmt.Errorf("output range: %w", err)
	}
	if _, err := newValueCommand(c, CMD_SET_CONV_FACTOR, cfg.PositionConversionFactor).Process(); err != nil {
		return fmt.Errorf("conversion factor: %w", err)
	}

	if persist == smartmotor.PersistParameters {
		return c.burnFlash()
	}
	return nil
}

// SetClosedLoopGains patches the four gain registers in place, leaving every
// other parameter untouched, and burns the result so it survives a brownout
// mid-match.
func (c *Controller) SetClosedLoopGains(p, i, d, ff float64) error {
	if err := c.applyGains(p, i, d, ff); err != nil {
		return err
	}
	return c.burnFlash()
}

// SetReference deposits a closed loop position setpoint. The device's control
// loop takes it from there.
func (c *Controller) SetReference(pos float64) error {
	_, err := newValueCommand(c, CMD_SET_REFERENCE, pos).Process()
	return err
}

// SetPosition seeds the relative position accumulator.
func (c *Controller) SetPosition(pos float64) error {
	_, err := newValueCommand(c, CMD_SEED_POSITION, pos).Process()
	return err
}

// Position returns the last position telemetry broadcast by the device.
// Never blocks; reads zero until the first status frame arrives.
func (c *Controller) Position() float64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.position
}

func (c *Controller) applyGains(p, i, d, ff float64) error {
	gains := []struct {
		cmd   uint16
		name  string
		value float64
	}{
		{CMD_SET_KP, "kP", p},
		{CMD_SET_KI, "kI", i},
		{CMD_SET_KD, "kD", d},
		{CMD_SET_KFF, "kFF", ff},
	}

	for _, g := range gains {
		if _, err := newValueCommand(c, g.cmd, g.value).Process(); err != nil {
			return fmt.Errorf("set %s: %w", g.name, err)
		}
	}
	return nil
}

func (c *Controller) burnFlash() error {
	if _, err := newFlagCommand(c, CMD_BURN_FLASH).Process(); err != nil {
		return fmt.Errorf("burn flash: %w", err)
	}
	return nil
}

func (c *Controller) sendMsg(msg canbus.CANMsg) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.bus.SendMsg(msg)
}

func (c *Controller) registerPending(cmd *BaseCommand) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.pendingCmd[cmd.ID()] = cmd
}

func (c *Controller) releasePending(cmd *BaseCommand) {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.pendingCmd, cmd.ID())
}

func (c *Controller) listen() {
	c.bus.AddListener(c.id, c.rx)

	for msg := range c.rx {
		switch msg.Cmd {
		case CMD_STATUS_POS:
			if len(msg.Data) < 4 {
				continue
			}
			pos := float64(math.Float32frombits(binary.LittleEndian.Uint32(msg.Data[0:4])))
			c.lock.Lock()
			c.position = pos
			c.lock.Unlock()

		default:
			c.routeAck(msg)
		}
	}
}

func (c *Controller) routeAck(msg canbus.CANMsg) {
	c.lock.Lock()
	cmd, ok := c.pendingCmd[msg.Cmd]
	c.lock.Unlock()

	if ok {
		cmd.Ack(msg)
	}
}
