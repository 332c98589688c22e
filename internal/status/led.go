// Package status shows the flight loop state on an indicator LED.
//
// A slow flash means ready and disarmed, solid means armed, a 150ms flash
// means the receiver is in failsafe and a rapid flash means the sensor
// failed and arming is disabled. A slow alternate while armed means the
// sensor stopped delivering samples, and three blinks mean a failsafe
// disarmed the loop.
package status

import "github.com/BryanSouza91/RotorFC/internal/flight"

// Pin is an LED output. machine.Pin satisfies it.
type Pin interface {
	High()
	Low()
}

// Pattern is an LED pattern.
type Pattern int

const (
	LED_OFF Pattern = iota
	LED_ON
	LED_SLOWFLASH
	LED_FASTFLASH
	LED_FLASH
	LED_ALTERNATE
	LED_BLINK3
)

// Half periods in microseconds.
const (
	slowFlash = 250_000
	fastFlash = 50_000
	flash     = 150_000
	alternate = 500_000
	blink     = 100_000
	// blink3 runs three blinks then stays off for this long.
	blink3Pause = 700_000
)

// LED drives a pin without blocking. Update is called from the main loop.
type LED struct {
	pin        Pin
	pattern    Pattern
	lastToggle uint32
	isOn       bool
	blinks     int
}

// NewLED returns an LED that starts off.
func NewLED(pin Pin) *LED {
	pin.Low()
	return &LED{pin: pin}
}

// SetPattern switches pattern. The new pattern starts on the next Update.
func (l *LED) SetPattern(p Pattern) {
	if p == l.pattern {
		return
	}
	l.pattern = p
	l.blinks = 0
}

// Pattern returns the current pattern.
func (l *LED) Pattern() Pattern {
	return l.pattern
}

// IsOn reports the last level written to the pin.
func (l *LED) IsOn() bool {
	return l.isOn
}

// Update drives the pin for now, a microsecond counter.
func (l *LED) Update(now uint32) {
	switch l.pattern {
	case LED_OFF:
		l.set(false, now)
	case LED_ON:
		l.set(true, now)
	case LED_SLOWFLASH:
		l.toggleEvery(slowFlash, now)
	case LED_FASTFLASH:
		l.toggleEvery(fastFlash, now)
	case LED_FLASH:
		l.toggleEvery(flash, now)
	case LED_ALTERNATE:
		l.toggleEvery(alternate, now)
	case LED_BLINK3:
		if l.blinks == 6 {
			if now-l.lastToggle >= blink3Pause {
				l.blinks = 0
			}
			return
		}
		if l.toggleEvery(blink, now) {
			l.blinks++
		}
	}
}

func (l *LED) toggleEvery(half uint32, now uint32) bool {
	if now-l.lastToggle < half {
		return false
	}
	l.set(!l.isOn, now)
	return true
}

func (l *LED) set(on bool, now uint32) {
	if on {
		l.pin.High()
	} else {
		l.pin.Low()
	}
	if on != l.isOn {
		l.lastToggle = now
	}
	l.isOn = on
}

// ForStatus picks the pattern for a loop snapshot.
func ForStatus(s flight.Status) Pattern {
	switch {
	case s.State == flight.StateDegraded:
		return LED_FASTFLASH
	case s.Failsafe:
		return LED_FLASH
	case s.State == flight.StateArmed && s.SensorStale:
		return LED_ALTERNATE
	case s.State == flight.StateArmed:
		return LED_ON
	case s.State == flight.StateUninitialized:
		return LED_OFF
	case s.State == flight.StateDisarmed && s.DisarmedBy == "failsafe":
		// Waiting for the arm switch to be cycled.
		return LED_BLINK3
	}
	return LED_SLOWFLASH
}
