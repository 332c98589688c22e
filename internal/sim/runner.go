package sim

import (
	"sync/atomic"
	"time"

	"github.com/BryanSouza91/RotorFC/internal/config"
	"github.com/BryanSouza91/RotorFC/internal/flight"
	"github.com/BryanSouza91/RotorFC/internal/mixer"
	"github.com/BryanSouza91/RotorFC/internal/receiver"
)

// Inputs are the receiver channels the loop reads.
type Inputs struct {
	Thrust, Yaw, Pitch, Roll, Arm receiver.Channel
}

// Inputs returns the sticks as loop inputs.
func (s *Sticks) Inputs() Inputs {
	return Inputs{Thrust: s.Thrust, Yaw: s.Yaw, Pitch: s.Pitch, Roll: s.Roll, Arm: s.Arm}
}

// Runner steps the flight loop against the airframe in simulated time.
type Runner struct {
	Loop    *flight.Loop
	Air     *Airframe
	Battery *Battery
	Switch  *flight.ArmSwitch

	period  time.Duration
	elapsed time.Duration
	// now may be read by receiver goroutines stamping frames.
	now atomic.Uint32
}

// NewRunner builds and initializes a loop from cfg flying a simulated
// airframe of the configured frame.
func NewRunner(cfg *config.Config, in Inputs, log flight.Logger) (*Runner, error) {
	geometry, err := mixer.Lookup(cfg.Motors.Frame)
	if err != nil {
		return nil, err
	}
	p := DefaultParams()
	p.Geometry = geometry
	p.MotorMin, p.MotorMax = float32(cfg.Motors.Min), float32(cfg.Motors.Max)

	r := &Runner{period: cfg.Period()}
	r.Air = NewAirframe(p)
	r.Battery = NewBattery(r.Air)
	r.Loop, err = flight.New(cfg, flight.Collaborators{
		Sensor:   r.Air,
		Actuator: r.Air,
		Thrust:   in.Thrust,
		Yaw:      in.Yaw,
		Pitch:    in.Pitch,
		Roll:     in.Roll,
		Voltage:  r.Battery.Voltage(),
		Current:  r.Battery.Current(),
		Clock:    r.Clock,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	if in.Arm != nil {
		r.Switch = flight.NewArmSwitch(in.Arm, cfg.Receiver.ArmHigh)
	}
	return r, nil
}

// Init initializes the loop. See flight.Loop.Init.
func (r *Runner) Init() error {
	return r.Loop.Init()
}

// Clock is the simulated microsecond counter.
func (r *Runner) Clock() uint32 {
	return r.now.Load()
}

// Elapsed returns the simulated time.
func (r *Runner) Elapsed() time.Duration {
	return r.elapsed
}

// Tick advances one loop period: the loop runs, the arm switch is polled
// and the airframe and battery move.
func (r *Runner) Tick() {
	r.elapsed += r.period
	r.now.Add(uint32(r.period / time.Microsecond))

	r.Loop.Control()
	if r.Switch != nil {
		r.Switch.Poll(r.Loop)
	}
	dt := float32(r.period.Seconds())
	r.Air.Step(dt)
	r.Battery.Step(dt)
}

// Run ticks until d of simulated time has passed.
func (r *Runner) Run(d time.Duration) {
	end := r.elapsed + d
	for r.elapsed < end {
		r.Tick()
	}
}
