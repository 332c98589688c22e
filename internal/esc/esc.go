// Package esc drives PWM electronic speed controllers from motor commands
// in microseconds.
package esc

import (
	"errors"
	"fmt"
)

var (
	ErrMotorCount = errors.New("esc: motor count does not match outputs")
	ErrPeriod     = errors.New("esc: PWM period shorter than the longest pulse")
)

// PWM is a configured PWM peripheral. machine.PWM groups on TinyGo
// targets satisfy it.
type PWM interface {
	Top() uint32
	Set(channel uint8, value uint32)
}

// Output is one ESC signal line.
type Output struct {
	PWM     PWM
	Channel uint8
}

// ESC writes one pulse per motor per cycle.
type ESC struct {
	outputs  []Output
	periodNs uint64
}

// PeriodNs returns the PWM period for an update rate in Hz.
func PeriodNs(hz uint32) uint64 {
	if hz == 0 {
		return 0
	}
	return 1e9 / uint64(hz)
}

// New returns an ESC driver. periodNs must match the period the PWM
// peripherals were configured with and be long enough for maxPulse
// microseconds.
func New(periodNs uint64, maxPulse uint16, outputs ...Output) (*ESC, error) {
	if periodNs == 0 || uint64(maxPulse)*1000 > periodNs {
		return nil, fmt.Errorf("%w: %dns for %dus", ErrPeriod, periodNs, maxPulse)
	}
	for i, o := range outputs {
		if o.PWM == nil {
			return nil, fmt.Errorf("esc: output %d has no PWM", i)
		}
	}
	return &ESC{outputs: outputs, periodNs: periodNs}, nil
}

// Duty converts a pulse width in microseconds to a value relative to the
// PWM period. Pulses longer than the period saturate at top.
func Duty(pulseUs uint16, top uint32, periodNs uint64) uint32 {
	duty := uint64(pulseUs) * 1000 * uint64(top) / periodNs
	if duty > uint64(top) {
		return top
	}
	return uint32(duty)
}

// Write sets every output. The Period() function is not available on every
// target so the configured period is used.
func (e *ESC) Write(motors []uint16) error {
	if len(motors) != len(e.outputs) {
		return fmt.Errorf("%w: %d commands for %d outputs", ErrMotorCount, len(motors), len(e.outputs))
	}
	for i, o := range e.outputs {
		o.PWM.Set(o.Channel, Duty(motors[i], o.PWM.Top(), e.periodNs))
	}
	return nil
}

// Stop writes pulse to every output, typically the minimum command.
func (e *ESC) Stop(pulse uint16) {
	for _, o := range e.outputs {
		o.PWM.Set(o.Channel, Duty(pulse, o.PWM.Top(), e.periodNs))
	}
}
