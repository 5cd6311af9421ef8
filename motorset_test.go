package main

import (
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/RoiRomem/KoiUtils/smartmotor"
)

type nullController struct{}

func (nullController) Configure(smartmotor.ClosedLoopConfig, smartmotor.ResetMode, smartmotor.PersistMode) error {
	return nil
}
func (nullController) Position() float64                       { return 0 }
func (nullController) SetPosition(float64) error               { return nil }
func (nullController) SetReference(float64) error              { return nil }
func (nullController) SetClosedLoopGains(p, i, d, ff float64) error { return nil }

type nullEncoder struct{}

func (nullEncoder) CurrentAngle() float64 { return 0 }

type nullDashboard struct{}

func (nullDashboard) Publish(string, float64) {}
func (nullDashboard) ReadBack(key string, def float64) float64 { return def }

type nullLogger struct{}

func (nullLogger) Errorf(string, ...interface{}) {}

func newTestSet(names ...string) *MotorSet {
	motors := make(map[string]*smartmotor.SmartMotor, len(names))
	for _, name := range names {
		motors[name] = smartmotor.New(nullController{}, nullEncoder{}, nullDashboard{}, nullLogger{}).SetName(name)
	}
	return NewMotorSet(motors)
}

func TestMotorSet(t *testing.T) {
	Convey("Names are sorted and Has reflects the configuration", t, func() {
		set := newTestSet("Intake", "Arm")
		So(set.Names(), ShouldResemble, []string{"Arm", "Intake"})
		So(set.Has("Arm"), ShouldBeTrue)
		So(set.Has("Shooter"), ShouldBeFalse)
	})

	Convey("Do errors for unknown motors", t, func() {
		set := newTestSet("Arm")
		err := set.Do("Shooter", func(*smartmotor.SmartMotor) error { return nil })
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "Shooter")
	})

	Convey("the control cycle and shell commands are serialized", t, func() {
		set := newTestSet("Arm")
		set.Do("Arm", func(m *smartmotor.SmartMotor) error {
			m.SetState(smartmotor.Tuning)
			return nil
		})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				set.Periodic()
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				state := smartmotor.Debug
				if i%2 == 0 {
					state = smartmotor.Tuning
				}
				set.Do("Arm", func(m *smartmotor.SmartMotor) error {
					m.SetState(state)
					return nil
				})
			}
		}()
		wg.Wait()

		var state smartmotor.MotorState
		So(set.Do("Arm", func(m *smartmotor.SmartMotor) error {
			state = m.State()
			return nil
		}), ShouldBeNil)
		So(state, ShouldEqual, smartmotor.Debug)
	})
}
