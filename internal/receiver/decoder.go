package receiver

import (
	"errors"
	"fmt"
)

const (
	MIN_PULSE_WIDTH_US = 1000 // full negative deflection / zero thrust
	MAX_PULSE_WIDTH_US = 2000 // full positive deflection / full thrust
	DEADBAND_US        = 20   // stick centering deadband
)

// ErrBounds is returned for calibration bounds that cannot be decoded.
var ErrBounds = errors.New("receiver: invalid calibration bounds")

// Fault says why a command was declared invalid.
type Fault int

const (
	FaultNone Fault = iota
	FaultRange
	FaultStale
)

func (f Fault) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultRange:
		return "out of range"
	case FaultStale:
		return "stale"
	}
	return "unknown"
}

// Command is one decoded receiver reading.
//
// Value holds thrust in 0..100 and yaw/pitch/roll in -100..100. When Valid
// is false Value is left zero; callers substitute their own safe command.
type Command struct {
	Raw   Motion[uint16]
	Value Motion[float32]
	Valid bool
	Fault Fault
	// Axis is the first channel that caused the fault.
	Axis Axis
}

// DecoderConfig holds receiver calibration.
type DecoderConfig struct {
	Min, Max uint16 // accepted pulse width range
	Mid      uint16 // centre for yaw/pitch/roll; 0 means (Min+Max)/2
	Deadband uint16
	// Timeout in microseconds after which a channel with no new pulse is
	// stale. Zero disables the check.
	Timeout uint32
	Invert  [NumAxes]bool
}

// DefaultDecoderConfig returns the nominal 1000..2000us calibration.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		Min:      MIN_PULSE_WIDTH_US,
		Max:      MAX_PULSE_WIDTH_US,
		Deadband: DEADBAND_US,
		Timeout:  500_000,
	}
}

// freshness is implemented by channels that can tell when they were last
// updated.
type freshness interface {
	Stale(now, timeout uint32) bool
}

// Decoder maps raw channel widths to a normalized motion command.
type Decoder struct {
	cfg      DecoderConfig
	channels [NumAxes]Channel
}

// NewDecoder returns a decoder reading thrust, yaw, pitch and roll from the
// given channels in that order.
func NewDecoder(cfg DecoderConfig, thrust, yaw, pitch, roll Channel) (*Decoder, error) {
	if cfg.Mid == 0 {
		cfg.Mid = cfg.Min + (cfg.Max-cfg.Min)/2
	}
	if cfg.Min >= cfg.Max || cfg.Mid <= cfg.Min || cfg.Mid >= cfg.Max {
		return nil, fmt.Errorf("%w: min=%d mid=%d max=%d", ErrBounds, cfg.Min, cfg.Mid, cfg.Max)
	}
	if cfg.Deadband >= cfg.Mid-cfg.Min || cfg.Deadband >= cfg.Max-cfg.Mid {
		return nil, fmt.Errorf("%w: deadband %d too wide", ErrBounds, cfg.Deadband)
	}
	if thrust == nil || yaw == nil || pitch == nil || roll == nil {
		return nil, errors.New("receiver: decoder needs thrust, yaw, pitch and roll channels")
	}
	return &Decoder{
		cfg:      cfg,
		channels: [NumAxes]Channel{thrust, yaw, pitch, roll},
	}, nil
}

// Config returns the calibration in use.
func (d *Decoder) Config() DecoderConfig {
	return d.cfg
}

// Decode reads every channel once and converts it. now is only used for
// the staleness check.
func (d *Decoder) Decode(now uint32) Command {
	var cmd Command
	cmd.Valid = true
	for a := Thrust; a < NumAxes; a++ {
		ch := d.channels[a]
		raw := ch.ReadChannel()
		cmd.Raw.Set(a, raw)
		if !cmd.Valid {
			continue
		}
		if f, ok := ch.(freshness); ok && d.cfg.Timeout > 0 && f.Stale(now, d.cfg.Timeout) {
			cmd.Valid, cmd.Fault, cmd.Axis = false, FaultStale, a
			continue
		}
		if raw < d.cfg.Min || raw > d.cfg.Max {
			cmd.Valid, cmd.Fault, cmd.Axis = false, FaultRange, a
		}
	}
	if !cmd.Valid {
		return cmd
	}
	for a := Thrust; a < NumAxes; a++ {
		cmd.Value.Set(a, d.normalize(a, cmd.Raw.Get(a)))
	}
	return cmd
}

func (d *Decoder) normalize(a Axis, raw uint16) float32 {
	if d.cfg.Invert[a] {
		raw = d.cfg.Max - (raw - d.cfg.Min)
	}
	v := float32(raw)
	if a == Thrust {
		return constrain(mapRange(v, float32(d.cfg.Min), float32(d.cfg.Max), 0, 100), 0, 100)
	}
	mid := float32(d.cfg.Mid)
	if v > mid-float32(d.cfg.Deadband) && v < mid+float32(d.cfg.Deadband) {
		return 0
	}
	if v < mid {
		return constrain(mapRange(v, float32(d.cfg.Min), mid, -100, 0), -100, 0)
	}
	return constrain(mapRange(v, mid, float32(d.cfg.Max), 0, 100), 0, 100)
}
