package receiver

import "golang.org/x/exp/constraints"

// Motion bundles one value per motion axis.
type Motion[T constraints.Integer | constraints.Float] struct {
	Thrust T
	Yaw    T
	Pitch  T
	Roll   T
}

// Axis names a channel of a Motion.
type Axis int

const (
	Thrust Axis = iota
	Yaw
	Pitch
	Roll

	NumAxes = 4
)

func (a Axis) String() string {
	switch a {
	case Thrust:
		return "thrust"
	case Yaw:
		return "yaw"
	case Pitch:
		return "pitch"
	case Roll:
		return "roll"
	}
	return "unknown"
}

// Get returns the value for axis a.
func (m *Motion[T]) Get(a Axis) T {
	switch a {
	case Yaw:
		return m.Yaw
	case Pitch:
		return m.Pitch
	case Roll:
		return m.Roll
	}
	return m.Thrust
}

// Set stores v for axis a.
func (m *Motion[T]) Set(a Axis, v T) {
	switch a {
	case Thrust:
		m.Thrust = v
	case Yaw:
		m.Yaw = v
	case Pitch:
		m.Pitch = v
	case Roll:
		m.Roll = v
	}
}

// constrain clamps value into [min, max].
func constrain[T constraints.Integer | constraints.Float](value, min, max T) T {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// mapRange maps value linearly from one range to another.
func mapRange[T constraints.Float](value, fromMin, fromMax, toMin, toMax T) T {
	return (value-fromMin)/(fromMax-fromMin)*(toMax-toMin) + toMin
}
