package receiver

import (
	"errors"
	"fmt"
)

// Supported receiver protocols
const (
	PROTOCOL_PWM  = "pwm"
	PROTOCOL_IBUS = "ibus"
	PROTOCOL_CRSF = "crsf"
	// ELRS uses the CRSF protocol
	PROTOCOL_ELRS = "elrs"
)

var ErrProtocol = errors.New("receiver: unknown serial protocol")

// NewFrameParser returns the parser and UART baud rate for a serial
// protocol.
func NewFrameParser(protocol string) (FrameParser, uint32, error) {
	switch protocol {
	case PROTOCOL_IBUS:
		return NewIBusParser(), IBUS_BAUD_RATE, nil
	case PROTOCOL_CRSF, PROTOCOL_ELRS:
		return NewCRSFParser(), CRSF_BAUD_RATE, nil
	}
	return nil, 0, fmt.Errorf("%w: %q", ErrProtocol, protocol)
}

// Select returns channel n (0 based) of p.
func Select(p FrameParser, n int) (*Cell, error) {
	if n < 0 || n >= p.NumChannels() {
		return nil, fmt.Errorf("receiver: channel %d outside 0..%d", n, p.NumChannels()-1)
	}
	return p.Channel(n), nil
}

// ByteSource is a buffered UART. machine.UART satisfies it.
type ByteSource interface {
	Buffered() int
	ReadByte() (byte, error)
}

// Drain feeds every buffered byte to p without blocking and returns the
// number of frames completed.
func Drain(src ByteSource, p FrameParser, now uint32) int {
	frames := 0
	for src.Buffered() > 0 {
		b, err := src.ReadByte()
		if err != nil {
			break
		}
		if p.Feed(b, now) {
			frames++
		}
	}
	return frames
}
