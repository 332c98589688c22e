// Package serialrx reads a CRSF, ELRS or iBus receiver attached to a host
// serial port, typically through a USB UART adapter.
package serialrx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/BryanSouza91/RotorFC/internal/receiver"
)

const readTimeout = 100 * time.Millisecond

// Open opens port at the protocol's baud rate and returns the parser its
// bytes should be pumped into.
func Open(port, protocol string) (serial.Port, receiver.FrameParser, error) {
	p, baud, err := receiver.NewFrameParser(protocol)
	if err != nil {
		return nil, nil, err
	}
	mode := &serial.Mode{
		BaudRate: int(baud),
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	conn, err := serial.Open(port, mode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	if err := conn.SetReadTimeout(readTimeout); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("serial port %s: set read timeout: %w", port, err)
	}
	return conn, p, nil
}

// Ports lists the serial ports present on the host.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// Pump feeds bytes from r into p until ctx is done or r fails. Reads that
// time out with no data are retried. It returns the number of frames
// decoded.
func Pump(ctx context.Context, r io.Reader, p receiver.FrameParser, clock func() uint32) (int, error) {
	var buf [128]byte
	frames := 0
	for {
		select {
		case <-ctx.Done():
			return frames, ctx.Err()
		default:
		}
		n, err := r.Read(buf[:])
		now := clock()
		for _, b := range buf[:n] {
			if p.Feed(b, now) {
				frames++
			}
		}
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("serialrx: read: %w", err)
		}
	}
}
