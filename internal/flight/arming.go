package flight

import "github.com/BryanSouza91/RotorFC/internal/receiver"

// ArmSwitch turns an auxiliary receiver channel into arm and disarm
// requests. Arming needs the switch to travel from off to on, so a switch
// left on through a failsafe disarm or a power up does not re-arm.
type ArmSwitch struct {
	ch       receiver.Channel
	high     uint16
	last     bool
	primed   bool
	refused  error
	attempts uint32
}

// NewArmSwitch returns a switch that reads on above high microseconds.
func NewArmSwitch(ch receiver.Channel, high uint16) *ArmSwitch {
	return &ArmSwitch{ch: ch, high: high}
}

// On reports the current switch position.
func (s *ArmSwitch) On() bool {
	return s.ch.ReadChannel() > s.high
}

// Poll applies the switch to l. It should run once per cycle after
// Control. A refused arm attempt is kept until the next rising edge and
// returned by Refused.
func (s *ArmSwitch) Poll(l *Loop) {
	on := s.On()
	if !s.primed {
		// The first reading only establishes the starting position.
		s.primed = true
		s.last = on
		return
	}
	switch {
	case on && !s.last:
		s.attempts++
		s.refused = l.Arm()
	case !on && l.Armed():
		l.Disarm()
	}
	s.last = on
}

// Refused returns why the last arm attempt failed, or nil.
func (s *ArmSwitch) Refused() error {
	return s.refused
}

// Attempts counts arm requests, successful or not.
func (s *ArmSwitch) Attempts() uint32 {
	return s.attempts
}
