// Package mixer distributes thrust and attitude corrections across the
// motors of a fixed airframe.
package mixer

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

// Signs is the contribution of each correction axis to one motor.
// Every entry is -1, 0 or +1.
type Signs struct {
	Roll, Pitch, Yaw int8
}

// Geometry is the sign table for an airframe, one row per motor in output
// order.
type Geometry struct {
	Name   string
	Motors []Signs
}

// QuadX is a four motor X frame. Motor order, viewed from above with the
// nose up: front right, rear right, rear left, front left. Front right and
// rear left spin counter clockwise.
//
// Positive roll is right wing down, positive pitch is nose up and positive
// yaw is nose right.
var QuadX = Geometry{
	Name: "quadx",
	Motors: []Signs{
		{Roll: -1, Pitch: +1, Yaw: +1}, // front right
		{Roll: -1, Pitch: -1, Yaw: -1}, // rear right
		{Roll: +1, Pitch: -1, Yaw: +1}, // rear left
		{Roll: +1, Pitch: +1, Yaw: -1}, // front left
	},
}

// QuadPlus is a four motor + frame: front, right, rear, left. Front and
// rear spin counter clockwise.
var QuadPlus = Geometry{
	Name: "quadplus",
	Motors: []Signs{
		{Roll: 0, Pitch: +1, Yaw: +1}, // front
		{Roll: -1, Pitch: 0, Yaw: -1}, // right
		{Roll: 0, Pitch: -1, Yaw: +1}, // rear
		{Roll: +1, Pitch: 0, Yaw: -1}, // left
	},
}

// ErrGeometry is returned for an unusable sign table or range.
var ErrGeometry = errors.New("mixer: invalid geometry")

// Lookup returns a built in geometry by name.
func Lookup(name string) (Geometry, error) {
	switch name {
	case QuadX.Name, "":
		return QuadX, nil
	case QuadPlus.Name:
		return QuadPlus, nil
	}
	return Geometry{}, fmt.Errorf("%w: unknown frame %q", ErrGeometry, name)
}

// Mixer turns thrust plus corrections into one value per motor.
//
// Outputs are clamped motor by motor. There is no rebalancing when a motor
// saturates, so authority is lost asymmetrically at the limits.
type Mixer struct {
	signs    []Signs
	min, max float32
}

// New returns a mixer for geometry g whose outputs lie in [min, max].
func New(g Geometry, min, max float32) (*Mixer, error) {
	if len(g.Motors) == 0 {
		return nil, fmt.Errorf("%w: %q has no motors", ErrGeometry, g.Name)
	}
	if !(min < max) {
		return nil, fmt.Errorf("%w: empty output range [%v, %v]", ErrGeometry, min, max)
	}
	for i, s := range g.Motors {
		if !validSign(s.Roll) || !validSign(s.Pitch) || !validSign(s.Yaw) {
			return nil, fmt.Errorf("%w: motor %d has sign outside -1..1", ErrGeometry, i)
		}
	}
	signs := make([]Signs, len(g.Motors))
	copy(signs, g.Motors)
	return &Mixer{signs: signs, min: min, max: max}, nil
}

func validSign(s int8) bool {
	return s >= -1 && s <= 1
}

// Motors returns the number of outputs.
func (m *Mixer) Motors() int {
	return len(m.signs)
}

// Range returns the output bounds.
func (m *Mixer) Range() (min, max float32) {
	return m.min, m.max
}

// Mix writes one output per motor into out, which must have at least
// Motors() elements. All inputs are in output units.
func (m *Mixer) Mix(thrust, yaw, pitch, roll float32, out []float32) {
	for i, s := range m.signs {
		v := thrust + float32(s.Roll)*roll + float32(s.Pitch)*pitch + float32(s.Yaw)*yaw
		if v < m.min || math32.IsNaN(v) {
			v = m.min
		} else if v > m.max {
			v = m.max
		}
		out[i] = v
	}
}
