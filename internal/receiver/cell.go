package receiver

import "sync/atomic"

// Cell holds one channel value written by a serial receiver parser and read
// by the control loop.
type Cell struct {
	width atomic.Uint32
	at    atomic.Uint32
	seen  atomic.Bool
}

func (c *Cell) store(width uint16, now uint32) {
	c.width.Store(uint32(width))
	c.at.Store(now)
	c.seen.Store(true)
}

// ReadChannel returns the last stored pulse width in microseconds.
func (c *Cell) ReadChannel() uint16 {
	return uint16(c.width.Load())
}

// Stale reports whether the cell was not refreshed within timeout
// microseconds of now.
func (c *Cell) Stale(now, timeout uint32) bool {
	if !c.seen.Load() {
		return true
	}
	return now-c.at.Load() > timeout
}

// FrameParser is a byte-wise serial receiver decoder.
type FrameParser interface {
	Feed(b byte, now uint32) bool
	Channel(n int) *Cell
	NumChannels() int
	// Stats counts completed and rejected frames.
	Stats() (frames, bad uint32)
}

var (
	_ FrameParser = (*CRSFParser)(nil)
	_ FrameParser = (*IBusParser)(nil)
)

var (
	_ FrameParser = (*CRSFParser)(nil)
	_ FrameParser = (*IBusParser)(nil)
	_ Channel     = (*Cell)(nil)
	_ Channel     = (*Reader)(nil)
)
