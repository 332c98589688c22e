// Package config holds the named parameters the flight controller is
// initialised with. Defaults are compiled in; hosts can override them from
// a YAML file.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid parameter")

// Config represents the flight controller configuration.
type Config struct {
	Loop     LoopConfig     `yaml:"loop"`
	Receiver ReceiverConfig `yaml:"receiver"`
	Filters  FilterConfig   `yaml:"filters"`
	Yaw      AxisConfig     `yaml:"yaw"`
	Pitch    AxisConfig     `yaml:"pitch"`
	Roll     AxisConfig     `yaml:"roll"`
	Motors   MotorConfig    `yaml:"motors"`
	Arming   ArmingConfig   `yaml:"arming"`
	Sensor   SensorConfig   `yaml:"sensor"`
}

// LoopConfig contains scheduling parameters.
type LoopConfig struct {
	RateHz int `yaml:"rate_hz"`
	// MaxDt is the longest gap between two PID updates that is integrated.
	MaxDt time.Duration `yaml:"max_dt"`
}

// ReceiverConfig contains receiver calibration.
type ReceiverConfig struct {
	Protocol string        `yaml:"protocol"` // pwm, crsf or ibus
	Min      uint16        `yaml:"min"`
	Max      uint16        `yaml:"max"`
	Mid      uint16        `yaml:"mid"` // 0 means halfway between min and max
	Deadband uint16        `yaml:"deadband"`
	Timeout  time.Duration `yaml:"timeout"`
	// Channel numbers (0 based) for serial receivers.
	ThrustChannel int `yaml:"thrust_channel"`
	YawChannel    int `yaml:"yaw_channel"`
	PitchChannel  int `yaml:"pitch_channel"`
	RollChannel   int `yaml:"roll_channel"`
	ArmChannel    int `yaml:"arm_channel"`

	InvertThrust bool `yaml:"invert_thrust"`
	InvertYaw    bool `yaml:"invert_yaw"`
	InvertPitch  bool `yaml:"invert_pitch"`
	InvertRoll   bool `yaml:"invert_roll"`

	// ArmHigh is the pulse width above which the arm switch reads on.
	ArmHigh uint16 `yaml:"arm_high"`
}

// FilterConfig contains smoothing coefficients in (0, 1].
type FilterConfig struct {
	ThrustAlpha  float32 `yaml:"thrust_alpha"`
	YawAlpha     float32 `yaml:"yaw_alpha"`
	VoltageAlpha float32 `yaml:"voltage_alpha"`
	CurrentAlpha float32 `yaml:"current_alpha"`
}

// Axis control modes.
const (
	ModeAngle = "angle"
	ModeRate  = "rate"
)

// AxisConfig contains the controller for one attitude axis.
type AxisConfig struct {
	Mode string  `yaml:"mode"`
	Kp   float32 `yaml:"kp"`
	Ki   float32 `yaml:"ki"`
	Kd   float32 `yaml:"kd"`
	// OutputLimit bounds the correction symmetrically, in motor units.
	OutputLimit float32 `yaml:"output_limit"`
	// IntegralLimit bounds the integrator symmetrically.
	IntegralLimit float32 `yaml:"integral_limit"`
	// MaxTarget is the setpoint at full stick: degrees in angle mode,
	// degrees/second in rate mode.
	MaxTarget float32 `yaml:"max_target"`
}

// MotorConfig contains the airframe and actuator range.
type MotorConfig struct {
	Frame string `yaml:"frame"`
	// Min and Max bound every motor command, in microseconds.
	Min uint16 `yaml:"min"`
	Max uint16 `yaml:"max"`
	// Idle is written to every motor while disarmed.
	Idle uint16 `yaml:"idle"`
	// PWMFrequency is the ESC update rate in Hz.
	PWMFrequency uint32 `yaml:"pwm_frequency"`
}

// ArmingConfig contains arming and failsafe parameters.
type ArmingConfig struct {
	// MaxThrust is the highest thrust command (percent) that allows arming.
	MaxThrust float32 `yaml:"max_thrust"`
	// FailsafeDisarm is how long failsafe may last before disarming.
	FailsafeDisarm time.Duration `yaml:"failsafe_disarm"`
}

// SensorConfig contains orientation sensor calibration.
type SensorConfig struct {
	InvertX            bool `yaml:"invert_x"`
	InvertY            bool `yaml:"invert_y"`
	InvertZ            bool `yaml:"invert_z"`
	CalibrationSamples int  `yaml:"calibration_samples"`
}

// Default returns a default configuration for a 5 inch quad X.
func Default() *Config {
	return &Config{
		Loop: LoopConfig{
			RateHz: 250,
			MaxDt:  50 * time.Millisecond,
		},
		Receiver: ReceiverConfig{
			Protocol:      "pwm",
			Min:           1000,
			Max:           2000,
			Deadband:      20,
			Timeout:       500 * time.Millisecond,
			ThrustChannel: 2,
			YawChannel:    3,
			PitchChannel:  1,
			RollChannel:   0,
			ArmChannel:    4,
			ArmHigh:       1800,
		},
		Filters: FilterConfig{
			ThrustAlpha:  0.3,
			YawAlpha:     0.5,
			VoltageAlpha: 0.05,
			CurrentAlpha: 0.1,
		},
		Yaw: AxisConfig{
			Mode: ModeRate, Kp: 1.2, Ki: 0.5, Kd: 0,
			OutputLimit: 150, IntegralLimit: 100, MaxTarget: 180,
		},
		Pitch: AxisConfig{
			Mode: ModeAngle, Kp: 4, Ki: 1, Kd: 0.2,
			OutputLimit: 250, IntegralLimit: 50, MaxTarget: 30,
		},
		Roll: AxisConfig{
			Mode: ModeAngle, Kp: 4, Ki: 1, Kd: 0.2,
			OutputLimit: 250, IntegralLimit: 50, MaxTarget: 30,
		},
		Motors: MotorConfig{
			Frame:        "quadx",
			Min:          1000,
			Max:          2000,
			Idle:         1000,
			PWMFrequency: 400,
		},
		Arming: ArmingConfig{
			MaxThrust:      5,
			FailsafeDisarm: 2 * time.Second,
		},
		Sensor: SensorConfig{
			CalibrationSamples: 1000,
		},
	}
}

// Validate checks every parameter the controller relies on.
func (c *Config) Validate() error {
	if c.Loop.RateHz <= 0 {
		return fmt.Errorf("%w: loop.rate_hz %d", ErrInvalid, c.Loop.RateHz)
	}
	// The gap limit also discards a clock that stepped backwards.
	if c.Loop.MaxDt <= 0 {
		return fmt.Errorf("%w: loop.max_dt %v must be positive", ErrInvalid, c.Loop.MaxDt)
	}
	r := c.Receiver
	if r.Min >= r.Max {
		return fmt.Errorf("%w: receiver.min %d >= receiver.max %d", ErrInvalid, r.Min, r.Max)
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("%w: receiver.timeout %v must be positive", ErrInvalid, r.Timeout)
	}
	switch r.Protocol {
	case "pwm", "crsf", "elrs", "ibus":
	default:
		return fmt.Errorf("%w: receiver.protocol %q", ErrInvalid, r.Protocol)
	}
	alphas := []struct {
		name  string
		alpha float32
	}{
		{"thrust_alpha", c.Filters.ThrustAlpha},
		{"yaw_alpha", c.Filters.YawAlpha},
		{"voltage_alpha", c.Filters.VoltageAlpha},
		{"current_alpha", c.Filters.CurrentAlpha},
	}
	for _, f := range alphas {
		if !(f.alpha > 0 && f.alpha <= 1) {
			return fmt.Errorf("%w: filters.%s %v not in (0, 1]", ErrInvalid, f.name, f.alpha)
		}
	}
	axes := []struct {
		name string
		axis AxisConfig
	}{
		{"yaw", c.Yaw},
		{"pitch", c.Pitch},
		{"roll", c.Roll},
	}
	for _, x := range axes {
		a := x.axis
		if a.Mode != ModeAngle && a.Mode != ModeRate {
			return fmt.Errorf("%w: %s.mode %q", ErrInvalid, x.name, a.Mode)
		}
		if a.OutputLimit <= 0 || a.IntegralLimit <= 0 || a.MaxTarget <= 0 {
			return fmt.Errorf("%w: %s limits must be positive", ErrInvalid, x.name)
		}
	}
	m := c.Motors
	if m.Min >= m.Max {
		return fmt.Errorf("%w: motors.min %d >= motors.max %d", ErrInvalid, m.Min, m.Max)
	}
	if m.Idle < m.Min || m.Idle > m.Max {
		return fmt.Errorf("%w: motors.idle %d outside [%d, %d]", ErrInvalid, m.Idle, m.Min, m.Max)
	}
	if c.Arming.MaxThrust < 0 || c.Arming.MaxThrust > 100 {
		return fmt.Errorf("%w: arming.max_thrust %v", ErrInvalid, c.Arming.MaxThrust)
	}
	// Zero keeps the loop armed through any failsafe.
	if c.Arming.FailsafeDisarm < 0 {
		return fmt.Errorf("%w: arming.failsafe_disarm %v", ErrInvalid, c.Arming.FailsafeDisarm)
	}
	return nil
}

// Period returns the control loop period.
func (c *Config) Period() time.Duration {
	return time.Second / time.Duration(c.Loop.RateHz)
}
