// Package sim is a bench simulator for the flight loop: a rigid body
// airframe that stands in for the sensor and the ESCs, scripted sticks and
// a battery.
package sim

import (
	"github.com/chewxy/math32"

	"github.com/BryanSouza91/RotorFC/internal/flight"
	"github.com/BryanSouza91/RotorFC/internal/mixer"
)

const gravity = 9.81

// Params describe the simulated airframe.
type Params struct {
	Geometry           mixer.Geometry
	MotorMin, MotorMax float32
	// Gain is the angular acceleration in deg/s² per unit of normalized
	// differential thrust.
	Gain float32
	// Damping is the angular rate decay in 1/s.
	Damping float32
	// HoverThrottle is the normalized mean motor output that holds
	// altitude.
	HoverThrottle float32
	Temperature   float32
}

// DefaultParams returns a quad X that hovers at half throttle.
func DefaultParams() Params {
	return Params{
		Geometry:      mixer.QuadX,
		MotorMin:      1000,
		MotorMax:      2000,
		Gain:          250,
		Damping:       2,
		HoverThrottle: 0.5,
		Temperature:   25,
	}
}

// Airframe integrates attitude and altitude from motor commands. It
// implements flight.Sensor and flight.Actuator. It is not safe for
// concurrent use.
type Airframe struct {
	p Params

	motors []float32 // normalized 0..1

	angles      flight.Euler[float32]
	rates       flight.Euler[float32]
	disturbance flight.Euler[float32]
	altitude    float32
	climb       float32

	failPrepare bool
	dropout     bool
	writes      uint32
}

// NewAirframe returns an airframe on the ground, level, motors stopped.
func NewAirframe(p Params) *Airframe {
	return &Airframe{p: p, motors: make([]float32, len(p.Geometry.Motors))}
}

// Step advances the model by dt seconds.
func (a *Airframe) Step(dt float32) {
	var torque flight.Euler[float32]
	var mean float32
	for i, s := range a.p.Geometry.Motors {
		u := a.motors[i]
		torque.Roll += float32(s.Roll) * u
		torque.Pitch += float32(s.Pitch) * u
		torque.Yaw += float32(s.Yaw) * u
		mean += u
	}
	if n := len(a.motors); n > 0 {
		mean /= float32(n)
	}

	a.rates.Roll += (a.p.Gain*torque.Roll + a.disturbance.Roll - a.p.Damping*a.rates.Roll) * dt
	a.rates.Pitch += (a.p.Gain*torque.Pitch + a.disturbance.Pitch - a.p.Damping*a.rates.Pitch) * dt
	a.rates.Yaw += (a.p.Gain*torque.Yaw + a.disturbance.Yaw - a.p.Damping*a.rates.Yaw) * dt

	a.angles.Roll = wrap180(a.angles.Roll + a.rates.Roll*dt)
	a.angles.Pitch = wrap180(a.angles.Pitch + a.rates.Pitch*dt)
	a.angles.Yaw = wrap180(a.angles.Yaw + a.rates.Yaw*dt)

	// Vertical thrust scales with the cosine of the tilt.
	lift := mean / a.p.HoverThrottle * gravity *
		math32.Cos(a.angles.Roll*math32.Pi/180) * math32.Cos(a.angles.Pitch*math32.Pi/180)
	a.climb += (lift - gravity) * dt
	a.altitude += a.climb * dt
	if a.altitude <= 0 {
		a.altitude, a.climb = 0, 0
	}
}

func wrap180(deg float32) float32 {
	for deg > 180 {
		deg -= 360
	}
	for deg <= -180 {
		deg += 360
	}
	return deg
}

// Write takes one motor command set in microseconds.
func (a *Airframe) Write(motors []uint16) error {
	span := a.p.MotorMax - a.p.MotorMin
	for i := range a.motors {
		if i >= len(motors) {
			break
		}
		u := (float32(motors[i]) - a.p.MotorMin) / span
		if u < 0 {
			u = 0
		} else if u > 1 {
			u = 1
		}
		a.motors[i] = u
	}
	a.writes++
	return nil
}

// SetAttitude places the airframe at angles at rest.
func (a *Airframe) SetAttitude(angles flight.Euler[float32]) {
	a.angles = angles
	a.rates = flight.Euler[float32]{}
}

// Disturb applies a constant external angular acceleration in deg/s².
func (a *Airframe) Disturb(d flight.Euler[float32]) {
	a.disturbance = d
}

// FailPrepare makes Prepare report a sensor fault.
func (a *Airframe) FailPrepare(fail bool) { a.failPrepare = fail }

// Dropout makes IsReady report no new sample.
func (a *Airframe) Dropout(drop bool) { a.dropout = drop }

func (a *Airframe) Prepare() bool { return !a.failPrepare }
func (a *Airframe) IsReady() bool { return !a.failPrepare && !a.dropout }

func (a *Airframe) YawAngle() float32   { return a.angles.Yaw }
func (a *Airframe) PitchAngle() float32 { return a.angles.Pitch }
func (a *Airframe) RollAngle() float32  { return a.angles.Roll }

func (a *Airframe) YawRate() float32   { return a.rates.Yaw }
func (a *Airframe) PitchRate() float32 { return a.rates.Pitch }
func (a *Airframe) RollRate() float32  { return a.rates.Roll }

func (a *Airframe) Temperature() float32 { return a.p.Temperature }

// Angles returns the true attitude.
func (a *Airframe) Angles() flight.Euler[float32] { return a.angles }

// Altitude returns the height above ground in metres.
func (a *Airframe) Altitude() float32 { return a.altitude }

// Throttle returns the mean normalized motor output.
func (a *Airframe) Throttle() float32 {
	var sum float32
	for _, u := range a.motors {
		sum += u
	}
	if len(a.motors) == 0 {
		return 0
	}
	return sum / float32(len(a.motors))
}

// Writes counts motor command sets received.
func (a *Airframe) Writes() uint32 { return a.writes }
