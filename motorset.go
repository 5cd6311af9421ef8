package main

import (
	"fmt"
	"sort"
	"sync"

	"github.com/RoiRomem/KoiUtils/smartmotor"
)

// MotorSet serializes access to the motors. A SmartMotor is not safe for use
// from multiple goroutines, and both the control cycle ticker and the shell
// reach the same motors, so every caller goes through the set's lock.
type MotorSet struct {
	mu     sync.Mutex
	motors map[string]*smartmotor.SmartMotor
}

func NewMotorSet(motors map[string]*smartmotor.SmartMotor) *MotorSet {
	return &MotorSet{motors: motors}
}

// Names returns the configured motor names, sorted.
func (s *MotorSet) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.motors))
	for name := range s.motors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a motor with the given name is configured.
func (s *MotorSet) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.motors[name]
	return ok
}

// Do runs fn against the named motor while holding the set's lock.
func (s *MotorSet) Do(name string, fn func(*smartmotor.SmartMotor) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.motors[name]
	if !ok {
		return fmt.Errorf("no such motor %s", name)
	}
	return fn(m)
}

// Periodic runs one control cycle over every motor, returning any errors
// keyed by motor name.
func (s *MotorSet) Periodic() map[string]error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs map[string]error
	for name, m := range s.motors {
		if err := m.Periodic(); err != nil {
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[name] = err
		}
	}
	return errs
}
