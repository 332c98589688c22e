// Package pid implements the discrete per-axis attitude controller.
package pid

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

// ErrLimits is returned when a clamp range is empty.
var ErrLimits = errors.New("pid: min must be below max")

// Config holds gains and limits for one axis.
type Config struct {
	Kp, Ki, Kd     float32
	OutMin, OutMax float32
	// Integrator accumulator bounds, in error*seconds.
	IntMin, IntMax float32
	// MaxDt is the longest gap in microseconds between two calls that is
	// still integrated. Longer gaps skip the integral and derivative
	// update for that call. Zero disables the limit.
	MaxDt uint32
}

// Controller holds the state for a PID controller. It is not safe for
// concurrent use.
type Controller struct {
	cfg Config

	integral  float32
	prevError float32
	prevTime  uint32
	havePrev  bool
	output    float32
}

// New returns a controller with a zero integrator.
func New(cfg Config) (*Controller, error) {
	if !(cfg.OutMin < cfg.OutMax) {
		return nil, fmt.Errorf("%w: output [%v, %v]", ErrLimits, cfg.OutMin, cfg.OutMax)
	}
	if !(cfg.IntMin < cfg.IntMax) {
		return nil, fmt.Errorf("%w: integrator [%v, %v]", ErrLimits, cfg.IntMin, cfg.IntMax)
	}
	return &Controller{cfg: cfg}, nil
}

// Config returns the gains and limits in use.
func (p *Controller) Config() Config {
	return p.cfg
}

// Update calculates the new control output. now is a free running
// microsecond counter; the elapsed time since the previous call is used
// as dt.
//
// The first call after New or Reset only applies the proportional term,
// as there is no previous error or timestamp to work from. A zero dt skips
// the integral and derivative terms for that call.
func (p *Controller) Update(target, measurement float32, now uint32) float32 {
	err := target - measurement
	if math32.IsNaN(err) || math32.IsInf(err, 0) {
		return p.output
	}

	// Proportional term
	out := p.cfg.Kp * err

	dtUs := now - p.prevTime
	if p.havePrev && dtUs > 0 && (p.cfg.MaxDt == 0 || dtUs <= p.cfg.MaxDt) {
		dt := float32(dtUs) * 1e-6

		// Integral term, clamped for anti-windup
		p.integral = clamp(p.integral+err*dt, p.cfg.IntMin, p.cfg.IntMax)
		out += p.cfg.Ki * p.integral

		// Derivative term on error
		out += p.cfg.Kd * (err - p.prevError) / dt
	} else if p.havePrev {
		out += p.cfg.Ki * p.integral
	}

	p.prevError = err
	p.prevTime = now
	p.havePrev = true

	out = clamp(out, p.cfg.OutMin, p.cfg.OutMax)
	if math32.IsNaN(out) {
		return p.output
	}
	p.output = out
	return out
}

// Reset zeroes the integrator and previous error. The next Update is
// treated as a first call.
func (p *Controller) Reset() {
	p.integral = 0
	p.prevError = 0
	p.prevTime = 0
	p.havePrev = false
	p.output = 0
}

// Integrator returns the accumulated error.
func (p *Controller) Integrator() float32 {
	return p.integral
}

// Output returns the last computed output.
func (p *Controller) Output() float32 {
	return p.output
}

func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
