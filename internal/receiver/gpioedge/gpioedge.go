// Package gpioedge feeds receiver channel readers from Linux GPIO edge
// events, for bench testing a PWM receiver on a single board computer.
package gpioedge

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/BryanSouza91/RotorFC/internal/receiver"
)

// pollTimeout bounds how long Watch waits for an edge before checking for
// cancellation.
const pollTimeout = 100 * time.Millisecond

// Open initializes the host drivers and returns the named pin.
func Open(name string) (gpio.PinIn, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpioedge: periph host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpioedge: pin %q not found", name)
	}
	return p, nil
}

// Watch configures pin for both edges and hands every edge to r, stamped
// with clock, until ctx is done.
func Watch(ctx context.Context, pin gpio.PinIn, r *receiver.Reader, clock func() uint32) error {
	if err := pin.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return fmt.Errorf("gpioedge: configure %s: %w", pin, err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !pin.WaitForEdge(pollTimeout) {
			continue
		}
		r.HandleEdge(pin.Read() == gpio.High, clock())
	}
}

// Clock returns a microsecond counter starting at zero now.
func Clock() func() uint32 {
	start := time.Now()
	return func() uint32 {
		return uint32(time.Since(start) / time.Microsecond)
	}
}
