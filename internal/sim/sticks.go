package sim

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/BryanSouza91/RotorFC/internal/receiver"
)

// Stick is a receiver channel whose pulse width is set directly. It may be
// written from another goroutine.
type Stick struct {
	width atomic.Uint32
}

// NewStick returns a stick at width microseconds.
func NewStick(width uint16) *Stick {
	s := &Stick{}
	s.Set(width)
	return s
}

// Set moves the stick.
func (s *Stick) Set(width uint16) { s.width.Store(uint32(width)) }

// ReadChannel returns the current width.
func (s *Stick) ReadChannel() uint16 { return uint16(s.width.Load()) }

var _ receiver.Channel = (*Stick)(nil)

// Sticks are the pilot inputs: the four axes plus the arm switch.
type Sticks struct {
	Thrust, Yaw, Pitch, Roll, Arm *Stick
}

// NewSticks returns centred sticks, thrust low and the arm switch off.
func NewSticks() *Sticks {
	return &Sticks{
		Thrust: NewStick(1000),
		Yaw:    NewStick(1500),
		Pitch:  NewStick(1500),
		Roll:   NewStick(1500),
		Arm:    NewStick(1000),
	}
}

// Step is one scripted stick position. Zero widths leave that stick where
// it is.
type Step struct {
	At time.Duration

	Thrust, Yaw, Pitch, Roll, Arm uint16

	// Note is logged by the runner when the step is applied.
	Note string
}

// Script plays steps against sticks as simulated time advances.
type Script struct {
	steps []Step
	next  int
}

// NewScript sorts steps by time.
func NewScript(steps ...Step) *Script {
	s := &Script{steps: append([]Step(nil), steps...)}
	sort.SliceStable(s.steps, func(i, j int) bool { return s.steps[i].At < s.steps[j].At })
	return s
}

// Advance applies every step due at elapsed and returns them.
func (s *Script) Advance(elapsed time.Duration, sticks *Sticks) []Step {
	start := s.next
	for s.next < len(s.steps) && s.steps[s.next].At <= elapsed {
		st := s.steps[s.next]
		for _, m := range []struct {
			stick *Stick
			width uint16
		}{
			{sticks.Thrust, st.Thrust},
			{sticks.Yaw, st.Yaw},
			{sticks.Pitch, st.Pitch},
			{sticks.Roll, st.Roll},
			{sticks.Arm, st.Arm},
		} {
			if m.width != 0 {
				m.stick.Set(m.width)
			}
		}
		s.next++
	}
	return s.steps[start:s.next]
}

// Done reports whether every step has been applied.
func (s *Script) Done() bool { return s.next >= len(s.steps) }

// End returns the time of the last step.
func (s *Script) End() time.Duration {
	if len(s.steps) == 0 {
		return 0
	}
	return s.steps[len(s.steps)-1].At
}

// DefaultScript arms, climbs, hovers, rolls right, yaws, lands and
// disarms.
func DefaultScript() *Script {
	return NewScript(
		Step{At: 0, Note: "idle"},
		Step{At: 500 * time.Millisecond, Arm: 2000, Note: "arm"},
		Step{At: 1 * time.Second, Thrust: 1600, Note: "climb"},
		Step{At: 2 * time.Second, Thrust: 1400, Note: "brake"},
		Step{At: 3 * time.Second, Thrust: 1500, Note: "hover"},
		Step{At: 5 * time.Second, Roll: 1750, Note: "roll right"},
		Step{At: 7 * time.Second, Roll: 1500, Note: "level"},
		Step{At: 8 * time.Second, Yaw: 1700, Note: "yaw right"},
		Step{At: 9 * time.Second, Yaw: 1500, Note: "hold heading"},
		Step{At: 10 * time.Second, Thrust: 1350, Note: "descend"},
		Step{At: 14 * time.Second, Thrust: 1000, Note: "cut"},
		Step{At: 15 * time.Second, Arm: 1000, Note: "disarm"},
	)
}
