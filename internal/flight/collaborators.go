package flight

import (
	"golang.org/x/exp/constraints"

	"github.com/BryanSouza91/RotorFC/internal/receiver"
)

// Sensor is the orientation sensing collaborator. Any sign inversion is
// applied by the implementation. None of the methods may block.
type Sensor interface {
	// Prepare configures and calibrates the sensor. It reports false when
	// the sensor cannot be used.
	Prepare() bool
	// IsReady reports whether a fresh sample is available.
	IsReady() bool

	YawAngle() float32 // degrees
	PitchAngle() float32
	RollAngle() float32

	YawRate() float32 // degrees/second
	PitchRate() float32
	RollRate() float32

	Temperature() float32 // degrees Celsius, informational
}

// Actuator receives one motor command set, in microseconds, per cycle.
// The slice is only valid for the duration of the call.
type Actuator interface {
	Write(motors []uint16) error
}

// ScalarSensor is a voltage or current reading.
type ScalarSensor interface {
	Read() float32
}

// Logger is the diagnostic output. *logrus.Logger satisfies it.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Clock returns a free running microsecond counter that may wrap.
type Clock func() uint32

// Collaborators are injected at construction and referenced, not owned, by
// the loop.
type Collaborators struct {
	Sensor   Sensor
	Actuator Actuator

	Thrust, Yaw, Pitch, Roll receiver.Channel

	// Optional battery monitoring.
	Voltage, Current ScalarSensor

	Clock  Clock
	Logger Logger
}

// Euler bundles one value per attitude axis.
type Euler[T constraints.Float] struct {
	Yaw   T
	Pitch T
	Roll  T
}

// Orientation is one sample from the sensing collaborator.
type Orientation struct {
	Angles Euler[float32] // degrees
	Rates  Euler[float32] // degrees/second
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
