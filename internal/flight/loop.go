// Package flight sequences receiver decoding, smoothing, attitude control
// and motor mixing once per scheduling tick.
package flight

import (
	"errors"
	"fmt"
	"time"

	"github.com/BryanSouza91/RotorFC/internal/config"
	"github.com/BryanSouza91/RotorFC/internal/filter"
	"github.com/BryanSouza91/RotorFC/internal/mixer"
	"github.com/BryanSouza91/RotorFC/internal/pid"
	"github.com/BryanSouza91/RotorFC/internal/receiver"
)

var (
	ErrNotInitialized = errors.New("flight: loop not initialized")
	ErrSensorNotReady = errors.New("flight: orientation sensor not ready")
	ErrFailsafe       = errors.New("flight: receiver in failsafe")
	ErrThrustHigh     = errors.New("flight: thrust too high to arm")
)

// State of the flight control loop.
type State int

const (
	StateUninitialized State = iota
	// StateReady is reached when Init succeeds; the loop is disarmed.
	StateReady
	StateArmed
	StateDisarmed
	// StateDegraded means the sensor could not be prepared. The loop keeps
	// emitting idle commands and refuses to arm.
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateArmed:
		return "armed"
	case StateDisarmed:
		return "disarmed"
	case StateDegraded:
		return "degraded"
	}
	return "unknown"
}

const (
	axisYaw = iota
	axisPitch
	axisRoll
	numAxes
)

type axis struct {
	pid       *pid.Controller
	rateMode  bool
	maxTarget float32
}

// Loop is the flight control loop. All methods must be called from the
// main loop goroutine.
type Loop struct {
	cfg *config.Config
	c   Collaborators
	log Logger

	state State

	decoder *receiver.Decoder
	mixer   *mixer.Mixer
	axes    [numAxes]axis

	thrustFilter  *filter.Exponential
	yawFilter     *filter.Exponential
	voltageFilter *filter.Exponential
	currentFilter *filter.Exponential

	motorMin, motorMax float32
	motorIdle          uint16
	failsafeDisarm     uint32

	// Per cycle state. Buffers are allocated by Init.
	mix    []float32
	motors []uint16

	cmd           receiver.Command
	command       receiver.Motion[float32]
	sample        Orientation
	haveSample    bool
	staleSensor   bool
	failsafe      bool
	failsafeSince uint32
	corrections   Euler[float32]
	temperature   float32
	cycles        uint32
	actuatorErr   error
	disarmedBy    string
}

// New returns an uninitialized loop. The collaborators must outlive it.
func New(cfg *config.Config, c Collaborators) (*Loop, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if c.Sensor == nil || c.Actuator == nil || c.Clock == nil {
		return nil, errors.New("flight: sensor, actuator and clock are required")
	}
	if c.Thrust == nil || c.Yaw == nil || c.Pitch == nil || c.Roll == nil {
		return nil, errors.New("flight: thrust, yaw, pitch and roll channels are required")
	}
	l := &Loop{cfg: cfg, c: c, log: c.Logger}
	if l.log == nil {
		l.log = nopLogger{}
	}
	return l, nil
}

// Init builds the filters, controllers and mixer from the configuration
// and prepares the sensor. If the sensor cannot be prepared the loop moves
// to StateDegraded, keeps emitting idle commands and ErrSensorNotReady is
// returned. Calling Init again while degraded retries the sensor.
func (l *Loop) Init() error {
	switch l.state {
	case StateUninitialized:
	case StateDegraded:
		return l.prepareSensor()
	default:
		return nil
	}
	cfg := l.cfg

	dcfg := receiver.DecoderConfig{
		Min:      cfg.Receiver.Min,
		Max:      cfg.Receiver.Max,
		Mid:      cfg.Receiver.Mid,
		Deadband: cfg.Receiver.Deadband,
		Timeout:  micros(cfg.Receiver.Timeout),
		Invert: [receiver.NumAxes]bool{
			cfg.Receiver.InvertThrust,
			cfg.Receiver.InvertYaw,
			cfg.Receiver.InvertPitch,
			cfg.Receiver.InvertRoll,
		},
	}
	var err error
	l.decoder, err = receiver.NewDecoder(dcfg, l.c.Thrust, l.c.Yaw, l.c.Pitch, l.c.Roll)
	if err != nil {
		return fmt.Errorf("receiver decoder: %w", err)
	}

	if l.thrustFilter, err = filter.NewExponential(cfg.Filters.ThrustAlpha); err != nil {
		return fmt.Errorf("thrust filter: %w", err)
	}
	if l.yawFilter, err = filter.NewExponential(cfg.Filters.YawAlpha); err != nil {
		return fmt.Errorf("yaw filter: %w", err)
	}
	if l.voltageFilter, err = filter.NewExponential(cfg.Filters.VoltageAlpha); err != nil {
		return fmt.Errorf("voltage filter: %w", err)
	}
	if l.currentFilter, err = filter.NewExponential(cfg.Filters.CurrentAlpha); err != nil {
		return fmt.Errorf("current filter: %w", err)
	}

	for i, a := range [numAxes]config.AxisConfig{cfg.Yaw, cfg.Pitch, cfg.Roll} {
		p, err := pid.New(pid.Config{
			Kp: a.Kp, Ki: a.Ki, Kd: a.Kd,
			OutMin: -a.OutputLimit, OutMax: a.OutputLimit,
			IntMin: -a.IntegralLimit, IntMax: a.IntegralLimit,
			MaxDt: micros(cfg.Loop.MaxDt),
		})
		if err != nil {
			return fmt.Errorf("axis %d controller: %w", i, err)
		}
		l.axes[i] = axis{pid: p, rateMode: a.Mode == config.ModeRate, maxTarget: a.MaxTarget}
	}

	geometry, err := mixer.Lookup(cfg.Motors.Frame)
	if err != nil {
		return err
	}
	l.motorMin, l.motorMax = float32(cfg.Motors.Min), float32(cfg.Motors.Max)
	l.motorIdle = cfg.Motors.Idle
	if l.mixer, err = mixer.New(geometry, l.motorMin, l.motorMax); err != nil {
		return err
	}
	l.mix = make([]float32, l.mixer.Motors())
	l.motors = make([]uint16, l.mixer.Motors())
	for i := range l.motors {
		l.motors[i] = l.motorIdle
	}
	l.failsafeDisarm = micros(cfg.Arming.FailsafeDisarm)

	l.log.Infof("flight: %s frame, %d motors, %d Hz", geometry.Name, l.mixer.Motors(), cfg.Loop.RateHz)

	return l.prepareSensor()
}

func (l *Loop) prepareSensor() error {
	if !l.c.Sensor.Prepare() {
		l.state = StateDegraded
		l.log.Errorf("flight: sensor preparation failed, arming disabled")
		return ErrSensorNotReady
	}
	l.state = StateReady
	l.log.Infof("flight: ready")
	return nil
}

// Control runs one cycle. It never blocks and does not allocate.
func (l *Loop) Control() {
	if l.state == StateUninitialized {
		return
	}
	now := l.c.Clock()
	l.cycles++

	l.readReceiver(now)
	if l.failsafe {
		// The safe command takes effect at once instead of decaying.
		l.thrustFilter.Reset()
		l.yawFilter.Reset()
	}

	thrust := l.thrustFilter.Update(l.cmd.Value.Thrust)
	yaw := l.yawFilter.Update(l.cmd.Value.Yaw)
	l.command = receiver.Motion[float32]{
		Thrust: thrust,
		Yaw:    yaw,
		Pitch:  l.cmd.Value.Pitch,
		Roll:   l.cmd.Value.Roll,
	}

	l.readSensor()
	l.readBattery()

	l.corrections = Euler[float32]{}
	if l.state == StateArmed && !l.failsafe {
		l.corrections.Yaw = l.axes[axisYaw].update(yaw, l.sample.Angles.Yaw, l.sample.Rates.Yaw, now)
		l.corrections.Pitch = l.axes[axisPitch].update(l.command.Pitch, l.sample.Angles.Pitch, l.sample.Rates.Pitch, now)
		l.corrections.Roll = l.axes[axisRoll].update(l.command.Roll, l.sample.Angles.Roll, l.sample.Rates.Roll, now)
	}

	if l.state == StateArmed {
		base := l.motorMin + thrust/100*(l.motorMax-l.motorMin)
		l.mixer.Mix(base, l.corrections.Yaw, l.corrections.Pitch, l.corrections.Roll, l.mix)
		for i, v := range l.mix {
			l.motors[i] = uint16(v + 0.5)
		}
	} else {
		for i := range l.motors {
			l.motors[i] = l.motorIdle
		}
	}

	l.actuatorErr = l.c.Actuator.Write(l.motors)
}

// readReceiver decodes the channels and substitutes the safe command on
// failsafe. A failsafe that lasts longer than the configured limit
// disarms.
func (l *Loop) readReceiver(now uint32) {
	cmd := l.decoder.Decode(now)
	if cmd.Valid {
		if l.failsafe {
			// Controllers did not run during failsafe; start them clean.
			l.resetControllers()
			l.failsafe = false
		}
		l.cmd = cmd
		return
	}

	if !l.failsafe {
		l.failsafe = true
		l.failsafeSince = now
	}
	l.cmd = receiver.Command{Raw: cmd.Raw, Fault: cmd.Fault, Axis: cmd.Axis}
	if l.state == StateArmed && l.failsafeDisarm > 0 && now-l.failsafeSince >= l.failsafeDisarm {
		l.state = StateDisarmed
		l.disarmedBy = "failsafe"
	}
}

// readSensor copies a fresh sample when one is available and otherwise
// holds the previous one.
func (l *Loop) readSensor() {
	if l.state == StateDegraded || !l.c.Sensor.IsReady() {
		l.staleSensor = true
		return
	}
	s := l.c.Sensor
	l.sample = Orientation{
		Angles: Euler[float32]{Yaw: s.YawAngle(), Pitch: s.PitchAngle(), Roll: s.RollAngle()},
		Rates:  Euler[float32]{Yaw: s.YawRate(), Pitch: s.PitchRate(), Roll: s.RollRate()},
	}
	l.temperature = s.Temperature()
	l.haveSample = true
	l.staleSensor = false
}

func (l *Loop) readBattery() {
	if l.c.Voltage != nil {
		l.voltageFilter.Update(l.c.Voltage.Read())
	}
	if l.c.Current != nil {
		l.currentFilter.Update(l.c.Current.Read())
	}
}

// update runs the controller for one axis. stick is -100..100.
func (a *axis) update(stick, angle, rate float32, now uint32) float32 {
	target := stick / 100 * a.maxTarget
	if a.rateMode {
		return a.pid.Update(target, rate, now)
	}
	return a.pid.Update(target, angle, now)
}

func (l *Loop) resetControllers() {
	for i := range l.axes {
		l.axes[i].pid.Reset()
	}
}

// Arm enables motor output. The caller owns the arming gesture; Arm only
// checks that it is safe: the loop is initialized, the sensor was
// prepared, the receiver is not in failsafe and thrust is low. Every
// controller is reset on the transition.
func (l *Loop) Arm() error {
	switch l.state {
	case StateUninitialized:
		return ErrNotInitialized
	case StateDegraded:
		return ErrSensorNotReady
	case StateArmed:
		return nil
	}
	if l.failsafe || !l.cmd.Valid {
		return ErrFailsafe
	}
	if !l.haveSample {
		return ErrSensorNotReady
	}
	if l.thrustFilter.Value() > l.cfg.Arming.MaxThrust {
		return ErrThrustHigh
	}
	l.resetControllers()
	l.state = StateArmed
	l.disarmedBy = ""
	return nil
}

// Disarm forces idle output from the next cycle on.
func (l *Loop) Disarm() {
	if l.state == StateArmed {
		l.state = StateDisarmed
		l.disarmedBy = "pilot"
	}
}

// State returns the current loop state.
func (l *Loop) State() State {
	return l.state
}

// Armed reports whether motor output is enabled.
func (l *Loop) Armed() bool {
	return l.state == StateArmed
}

// Motors returns the last emitted motor command set. The slice is reused
// by the next Control call.
func (l *Loop) Motors() []uint16 {
	return l.motors
}

// Battery returns the filtered voltage and current. Both are zero when the
// corresponding sensor is not connected.
func (l *Loop) Battery() (volts, amps float32) {
	if l.voltageFilter == nil {
		return 0, 0
	}
	return l.voltageFilter.Value(), l.currentFilter.Value()
}

// Status is a snapshot of the loop for diagnostics.
type Status struct {
	State       State
	Failsafe    bool
	Fault       receiver.Fault
	FaultAxis   receiver.Axis
	SensorStale bool
	Command     receiver.Motion[float32]
	Sample      Orientation
	Corrections Euler[float32]
	Integrators Euler[float32]
	Temperature float32
	Voltage     float32
	Current     float32
	Cycles      uint32
	ActuatorErr error
	// DisarmedBy is "pilot" or "failsafe" after a disarm.
	DisarmedBy string
}

// Status returns a snapshot of the last cycle.
func (l *Loop) Status() Status {
	s := Status{
		State:       l.state,
		Failsafe:    l.failsafe,
		Fault:       l.cmd.Fault,
		FaultAxis:   l.cmd.Axis,
		SensorStale: l.staleSensor,
		Command:     l.command,
		Sample:      l.sample,
		Corrections: l.corrections,
		Temperature: l.temperature,
		Cycles:      l.cycles,
		ActuatorErr: l.actuatorErr,
		DisarmedBy:  l.disarmedBy,
	}
	if l.state != StateUninitialized {
		s.Integrators = Euler[float32]{
			Yaw:   l.axes[axisYaw].pid.Integrator(),
			Pitch: l.axes[axisPitch].pid.Integrator(),
			Roll:  l.axes[axisRoll].pid.Integrator(),
		}
		s.Voltage, s.Current = l.Battery()
	}
	return s
}

func micros(d time.Duration) uint32 {
	return uint32(d / time.Microsecond)
}
