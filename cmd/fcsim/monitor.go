package main

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BryanSouza91/RotorFC/internal/flight"
	"github.com/BryanSouza91/RotorFC/internal/sim"
)

// monitor logs loop transitions and a periodic status line. It runs after
// every tick, outside the control cycle.
type monitor struct {
	log   *logrus.Logger
	every time.Duration

	last       flight.Status
	started    bool
	lastReport time.Duration
}

func newMonitor(log *logrus.Logger, every time.Duration) *monitor {
	return &monitor{log: log, every: every}
}

func (m *monitor) observe(elapsed time.Duration, st flight.Status, r *sim.Runner) {
	at := logrus.Fields{"t": elapsed.Truncate(time.Millisecond).String()}
	if !m.started || st.State != m.last.State {
		e := m.log.WithFields(at).WithField("state", st.State.String())
		if st.State == flight.StateDisarmed && st.DisarmedBy != "" {
			e = e.WithField("by", st.DisarmedBy)
		}
		e.Info("flight state")
	}
	if st.Failsafe && (!m.started || !m.last.Failsafe) {
		m.log.WithFields(at).WithFields(logrus.Fields{
			"fault": st.Fault.String(),
			"axis":  st.FaultAxis.String(),
		}).Warn("receiver failsafe")
	} else if !st.Failsafe && m.started && m.last.Failsafe {
		m.log.WithFields(at).Info("receiver recovered")
	}
	if st.SensorStale && st.State != flight.StateDegraded && (!m.started || !m.last.SensorStale) {
		m.log.WithFields(at).Warn("sensor sample not ready, holding last")
	}
	if st.ActuatorErr != nil && (!m.started || m.last.ActuatorErr == nil) {
		m.log.WithFields(at).WithError(st.ActuatorErr).Error("actuator write failed")
	}

	if m.every > 0 && elapsed-m.lastReport >= m.every {
		m.lastReport = elapsed
		angles := r.Air.Angles()
		m.log.WithFields(at).WithFields(logrus.Fields{
			"thrust":  round1(st.Command.Thrust),
			"roll":    round1(angles.Roll),
			"pitch":   round1(angles.Pitch),
			"yaw":     round1(angles.Yaw),
			"alt":     round1(r.Air.Altitude()),
			"motors":  r.Loop.Motors(),
			"volts":   round1(st.Voltage),
			"amps":    round1(st.Current),
			"i_roll":  round1(st.Integrators.Roll),
			"i_pitch": round1(st.Integrators.Pitch),
			"cycles":  st.Cycles,
		}).Debug("status")
	}

	m.last = st
	m.started = true
}

func round1(v float32) float32 {
	if v < 0 {
		return float32(int(v*10-0.5)) / 10
	}
	return float32(int(v*10+0.5)) / 10
}
