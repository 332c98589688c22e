package receiver

import (
	"math"
	"sync/atomic"
)

// Channel is anything that can report the latest pulse width of one RC
// channel in microseconds. PWM readers and serial receiver cells both
// satisfy it.
type Channel interface {
	ReadChannel() uint16
}

// Reader captures the pulse width of one receiver signal line.
//
// HandleEdge is meant to be called from the pin interrupt. It is the only
// writer of the committed value; the main loop reads it back with
// ReadChannel. The committed width and its timestamp are atomic cells so a
// read never observes a torn value.
type Reader struct {
	pin uint8

	// Owned by the interrupt handler.
	pending bool
	start   uint32

	width    atomic.Uint32
	commitAt atomic.Uint32
	commits  atomic.Uint32
}

// NewReader returns a Reader for the given pin number.
func NewReader(pin uint8) *Reader {
	return &Reader{pin: pin}
}

// Pin returns the pin number this reader was created for.
func (r *Reader) Pin() uint8 {
	return r.pin
}

// HandleEdge records one edge of the pulse. now is a free running
// microsecond counter; it is allowed to wrap.
func (r *Reader) HandleEdge(rising bool, now uint32) {
	if rising {
		// A rising edge while pending means the falling edge was missed.
		// Restart capture.
		r.start = now
		r.pending = true
		return
	}
	if !r.pending {
		return
	}
	w := now - r.start
	if w > math.MaxUint16 {
		w = math.MaxUint16
	}
	r.width.Store(w)
	r.commitAt.Store(now)
	r.commits.Add(1)
	r.pending = false
}

// ReadChannel returns the last committed pulse width in microseconds, or
// zero if no full pulse was seen yet.
func (r *Reader) ReadChannel() uint16 {
	return uint16(r.width.Load())
}

// LastCommit returns the timestamp of the last committed pulse.
// ok is false until the first pulse completes.
func (r *Reader) LastCommit() (at uint32, ok bool) {
	if r.commits.Load() == 0 {
		return 0, false
	}
	return r.commitAt.Load(), true
}

// Stale reports whether no pulse was committed within timeout
// microseconds of now. A reader that never saw a pulse is stale.
func (r *Reader) Stale(now, timeout uint32) bool {
	at, ok := r.LastCommit()
	if !ok {
		return true
	}
	return now-at > timeout
}
