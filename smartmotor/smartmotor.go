// Package smartmotor wraps a closed-loop motor controller and an absolute
// encoder behind a single handle with dashboard-driven live tuning.
//
// A SmartMotor is built once per physical motor at subsystem construction
// and driven by the subsystem's periodic callback. All collaborators are
// injected; the type holds no global state and is not safe for concurrent
// use from multiple goroutines.
package smartmotor

import "math"

// MotorState selects how much the motor reports to the dashboard each cycle.
type MotorState int

const (
	// Comp is the competition state: Periodic does nothing.
	Comp MotorState = iota
	// Debug publishes the current position every cycle.
	Debug
	// Tuning additionally publishes the closed-loop gains and re-applies
	// operator edits read back from the dashboard.
	Tuning
)

// gainEpsilon tolerates float round-trip noise through the dashboard's
// storage so an unchanged value never triggers a controller reconfigure.
const gainEpsilon = 1e-6

// Gains are the four closed-loop scalars exposed for live tuning.
type Gains struct {
	P, I, D, FF float64
}

// ClosedLoopConfig is the full initial controller configuration. It is
// distinct from the four-scalar gain patch applied during tuning.
type ClosedLoopConfig struct {
	Gains
	OutputMin, OutputMax float64
	// PositionConversionFactor scales native sensor units into mechanism
	// units. Position and MoveToPosition both speak converted units.
	PositionConversionFactor float64
}

// ResetMode controls what happens to parameters not named in a configure call.
type ResetMode int

const (
	ResetSafeParameters ResetMode = iota
	NoResetSafeParameters
)

// PersistMode controls whether applied parameters survive a power cycle.
type PersistMode int

const (
	Volatile PersistMode = iota
	PersistParameters
)

// Controller is the motor-controller driver contract. The control loop runs
// in device firmware; every call here only deposits values on the device.
type Controller interface {
	Configure(cfg ClosedLoopConfig, reset ResetMode, persist PersistMode) error
	Position() float64
	SetPosition(pos float64) error
	SetReference(pos float64) error
	SetClosedLoopGains(p, i, d, ff float64) error
}

// AbsoluteEncoder reports an angle within a fixed full-scale range,
// pre-corrected for the mounting offset supplied at construction.
type AbsoluteEncoder interface {
	CurrentAngle() float64
}

// Dashboard is a key/value telemetry service. ReadBack returns the operator
// supplied override for key, or def when no override exists.
type Dashboard interface {
	Publish(key string, value float64)
	ReadBack(key string, def float64) float64
}

// Logger is satisfied by golog's sugared logger.
type Logger interface {
	Errorf(format string, args ...interface{})
}

type SmartMotor struct {
	ctrl Controller
	enc  AbsoluteEncoder
	dash Dashboard
	log  Logger

	name  string
	state MotorState
	pid   bool

	// cached is the last applied view of the gains, compared against the
	// dashboard read-back each tuning cycle. Defined only when pid is true.
	cached Gains
}

// New builds a motor without closed-loop control. MoveToPosition on the
// result logs and declines.
func New(ctrl Controller, enc AbsoluteEncoder, dash Dashboard, log Logger) *SmartMotor {
	return &SmartMotor{
		ctrl: ctrl,
		enc:  enc,
		dash: dash,
		log:  log,
		name: "Noname",
	}
}

// NewWithPID builds a motor with closed-loop control, applying cfg to the
// controller (resetting unnamed parameters to safe defaults, persisting the
// named ones) before first use.
//
// The gain cache deliberately starts at zero rather than cfg's gains: the
// existing tuning workflow seeds the dashboard from the cache and operators
// expect to type starting values in themselves. See DESIGN.md before
// changing this.
func NewWithPID(ctrl Controller, enc AbsoluteEncoder, dash Dashboard, log Logger, cfg ClosedLoopConfig) (*SmartMotor, error) {
	m := New(ctrl, enc, dash, log)
	m.pid = true
	if err := m.ctrl.Configure(cfg, ResetSafeParameters, PersistParameters); err != nil {
		return nil, err
	}
	return m, nil
}

// SetName replaces the dashboard key prefix. Chainable.
func (m *SmartMotor) SetName(name string) *SmartMotor {
	m.name = name
	return m
}

// SetState replaces the motor state, taking effect on the next Periodic call.
// Chainable.
func (m *SmartMotor) SetState(state MotorState) *SmartMotor {
	m.state = state
	return m
}

// Name returns the current dashboard key prefix.
func (m *SmartMotor) Name() string {
	return m.name
}

// State returns the current motor state.
func (m *SmartMotor) State() MotorState {
	return m.state
}

// Position returns the controller's reported position in whatever units the
// configured conversion factor yields.
func (m *SmartMotor) Position() float64 {
	return m.ctrl.Position()
}

// SyncToAbsolute seeds the controller's relative position accumulator from
// the absolute encoder. One shot, no retry: an unpowered encoder reads as
// whatever the driver reports and that value is accepted as-is.
func (m *SmartMotor) SyncToAbsolute() error {
	return m.ctrl.SetPosition(m.enc.CurrentAngle())
}

// MoveToPosition deposits a closed-loop position setpoint on the controller.
// On a motor built without closed-loop control this logs once and declines.
func (m *SmartMotor) MoveToPosition(pos float64) error {
	if !m.pid {
		m.log.Errorf("%s - a pid function was called for a motor without pid configured", m.name)
		return nil
	}
	return m.ctrl.SetReference(pos)
}

// Periodic must be called once per control cycle by the owning subsystem.
// Comp: no-op. Debug: publish position. Tuning: publish position and gains,
// read operator edits back, and re-apply to the controller when any gain
// moved by more than gainEpsilon.
func (m *SmartMotor) Periodic() error {
	if m.state == Comp {
		return nil
	}

	m.dash.Publish(m.name+" Position", m.ctrl.Position())

	if m.state == Debug {
		return nil
	}

	m.dash.Publish(m.name+" kP", m.cached.P)
	m.dash.Publish(m.name+" kI", m.cached.I)
	m.dash.Publish(m.name+" kD", m.cached.D)
	m.dash.Publish(m.name+" kFF", m.cached.FF)

	next := Gains{
		P:  m.dash.ReadBack(m.name+" kP", m.cached.P),
		I:  m.dash.ReadBack(m.name+" kI", m.cached.I),
		D:  m.dash.ReadBack(m.name+" kD", m.cached.D),
		FF: m.dash.ReadBack(m.name+" kFF", m.cached.FF),
	}

	if !gainsDiffer(next, m.cached) {
		return nil
	}

	m.cached = next
	return m.ctrl.SetClosedLoopGains(next.P, next.I, next.D, next.FF)
}

func gainsDiffer(a, b Gains) bool {
	return math.Abs(a.P-b.P) > gainEpsilon ||
		math.Abs(a.I-b.I) > gainEpsilon ||
		math.Abs(a.D-b.D) > gainEpsilon ||
		math.Abs(a.FF-b.FF) > gainEpsilon
}
