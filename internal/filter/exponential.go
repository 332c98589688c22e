// Package filter provides scalar smoothing filters for command and sensor
// signals.
package filter

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

// ErrAlpha is returned for a smoothing coefficient outside (0, 1].
var ErrAlpha = errors.New("filter: alpha must be in (0, 1]")

// Exponential is a single pole low-pass filter:
//
//	y[n] = y[n-1] + alpha*(x[n] - y[n-1])
//
// The first sample seeds the state so there is no startup ramp from zero.
type Exponential struct {
	alpha  float32
	value  float32
	primed bool
}

// NewExponential returns a filter with the given coefficient. alpha = 1
// passes the input through unchanged.
func NewExponential(alpha float32) (*Exponential, error) {
	f := &Exponential{}
	if err := f.SetAlpha(alpha); err != nil {
		return nil, err
	}
	return f, nil
}

// SetAlpha changes the smoothing coefficient without touching the state.
func (f *Exponential) SetAlpha(alpha float32) error {
	if !(alpha > 0 && alpha <= 1) {
		return fmt.Errorf("%w: got %v", ErrAlpha, alpha)
	}
	f.alpha = alpha
	return nil
}

// Alpha returns the smoothing coefficient.
func (f *Exponential) Alpha() float32 {
	return f.alpha
}

// Update feeds one sample and returns the new output. NaN and infinite
// samples are dropped and the previous output is returned.
func (f *Exponential) Update(x float32) float32 {
	if math32.IsNaN(x) || math32.IsInf(x, 0) {
		return f.value
	}
	if !f.primed || f.alpha == 1 {
		f.value = x
		f.primed = true
		return f.value
	}
	f.value += f.alpha * (x - f.value)
	return f.value
}

// Value returns the last output.
func (f *Exponential) Value() float32 {
	return f.value
}

// Primed reports whether the filter has seen a sample since construction
// or the last Reset.
func (f *Exponential) Primed() bool {
	return f.primed
}

// Reset forgets the state; the next sample seeds it again.
func (f *Exponential) Reset() {
	f.value = 0
	f.primed = false
}
