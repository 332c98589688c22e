package gpioedge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/BryanSouza91/RotorFC/internal/receiver"
)

func sequenceClock(times ...uint32) func() uint32 {
	i := 0
	return func() uint32 {
		t := times[i%len(times)]
		i++
		return t
	}
}

func TestWatch_CommitsPulseWidths(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO17", Num: 17, EdgesChan: make(chan gpio.Level)}
	r := receiver.NewReader(17)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- Watch(ctx, pin, r, sequenceClock(1000, 2500, 10_000, 11_200))
	}()

	pin.EdgesChan <- gpio.High
	pin.EdgesChan <- gpio.Low
	assert.Eventually(t, func() bool { return r.ReadChannel() == 1500 }, time.Second, time.Millisecond)

	pin.EdgesChan <- gpio.High
	pin.EdgesChan <- gpio.Low
	assert.Eventually(t, func() bool { return r.ReadChannel() == 1200 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_ConfigureError(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO4", Num: 4}
	err := Watch(context.Background(), pin, receiver.NewReader(4), sequenceClock(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GPIO4")
}

func TestClock_Advances(t *testing.T) {
	clk := Clock()
	a := clk()
	time.Sleep(2 * time.Millisecond)
	assert.GreaterOrEqual(t, clk()-a, uint32(2000))
}
