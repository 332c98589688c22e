package sim

// Battery is a pack whose voltage sags with the current the airframe
// draws.
type Battery struct {
	air *Airframe

	Cells       int
	CellFull    float32 // volts
	CellEmpty   float32
	CapacityMAh float32
	// MaxCurrent is drawn with every motor at full output, in amps.
	MaxCurrent float32
	// Resistance is the pack internal resistance in ohms.
	Resistance float32

	usedMAh float32
}

// NewBattery returns a fully charged 4S 1500mAh pack feeding air.
func NewBattery(air *Airframe) *Battery {
	return &Battery{
		air:         air,
		Cells:       4,
		CellFull:    4.2,
		CellEmpty:   3.3,
		CapacityMAh: 1500,
		MaxCurrent:  80,
		Resistance:  0.02,
	}
}

// Step draws the current for dt seconds.
func (b *Battery) Step(dt float32) {
	b.usedMAh += b.amps() * dt * 1000 / 3600
	if b.usedMAh > b.CapacityMAh {
		b.usedMAh = b.CapacityMAh
	}
}

func (b *Battery) amps() float32 {
	return b.air.Throttle() * b.MaxCurrent
}

func (b *Battery) volts() float32 {
	charge := 1 - b.usedMAh/b.CapacityMAh
	open := float32(b.Cells) * (b.CellEmpty + charge*(b.CellFull-b.CellEmpty))
	return open - b.amps()*b.Resistance
}

// Used returns the consumed capacity in mAh.
func (b *Battery) Used() float32 { return b.usedMAh }

// Voltage returns the terminal voltage sensor.
func (b *Battery) Voltage() VoltageSensor { return VoltageSensor{b} }

// Current returns the current sensor.
func (b *Battery) Current() CurrentSensor { return CurrentSensor{b} }

// VoltageSensor reads the pack terminal voltage.
type VoltageSensor struct{ b *Battery }

func (s VoltageSensor) Read() float32 { return s.b.volts() }

// CurrentSensor reads the pack current.
type CurrentSensor struct{ b *Battery }

func (s CurrentSensor) Read() float32 { return s.b.amps() }
