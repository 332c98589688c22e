//go:build tinygo

package main

import (
	"machine"

	"tinygo.org/x/drivers/lsm6ds3tr"

	"github.com/BryanSouza91/RotorFC/internal/config"
	"github.com/BryanSouza91/RotorFC/internal/esc"
	"github.com/BryanSouza91/RotorFC/internal/flight"
	"github.com/BryanSouza91/RotorFC/internal/imu"
	"github.com/BryanSouza91/RotorFC/internal/receiver"
)

// rx is the configured receiver. poll is nil for PWM, whose readers are
// driven by pin interrupts.
type rx struct {
	thrust, yaw, pitch, roll, arm receiver.Channel
	poll                          func(now uint32)
}

func setupReceiver(cfg *config.Config, clock func() uint32) (*rx, error) {
	rc := cfg.Receiver
	if rc.Protocol == receiver.PROTOCOL_PWM {
		var readers [len(rxPins)]*receiver.Reader
		for i, pin := range rxPins {
			r := receiver.NewReader(uint8(pin))
			pin.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
			err := pin.SetInterrupt(machine.PinToggle, func(p machine.Pin) {
				r.HandleEdge(p.Get(), clock())
			})
			if err != nil {
				return nil, err
			}
			readers[i] = r
		}
		println("PWM receiver on", len(rxPins), "pins.")
		return &rx{thrust: readers[0], yaw: readers[1], pitch: readers[2], roll: readers[3], arm: readers[4]}, nil
	}

	parser, baud, err := receiver.NewFrameParser(rc.Protocol)
	if err != nil {
		return nil, err
	}
	uart := machine.DefaultUART
	uart.Configure(machine.UARTConfig{
		BaudRate: baud,
		TX:       machine.NoPin,
		RX:       machine.UART_RX_PIN,
	})
	var cells [5]*receiver.Cell
	for i, n := range []int{rc.ThrustChannel, rc.YawChannel, rc.PitchChannel, rc.RollChannel, rc.ArmChannel} {
		if cells[i], err = receiver.Select(parser, n); err != nil {
			return nil, err
		}
	}
	println("UART configured for receiver input:", rc.Protocol)
	return &rx{
		thrust: cells[0], yaw: cells[1], pitch: cells[2], roll: cells[3], arm: cells[4],
		poll: func(now uint32) {
			receiver.Drain(uart, parser, now)
		},
	}, nil
}

func setupESC(cfg *config.Config) (*esc.ESC, error) {
	period := esc.PeriodNs(cfg.Motors.PWMFrequency)
	if err := escPWM.Configure(machine.PWMConfig{Period: period}); err != nil {
		return nil, err
	}
	outputs := make([]esc.Output, len(escPins))
	for i, pin := range escPins {
		ch, err := escPWM.Channel(pin)
		if err != nil {
			return nil, err
		}
		outputs[i] = esc.Output{PWM: escPWM, Channel: ch}
	}
	return esc.New(period, cfg.Motors.Max, outputs...)
}

func setupIMU(cfg *config.Config, clock func() uint32) *imu.IMU {
	i2c := machine.I2C0
	i2c.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
	})
	lsm := lsm6ds3tr.New(i2c)
	sensor := imu.New(lsm, imu.Config{
		InvertX:            cfg.Sensor.InvertX,
		InvertY:            cfg.Sensor.InvertY,
		InvertZ:            cfg.Sensor.InvertZ,
		CalibrationSamples: cfg.Sensor.CalibrationSamples,
		Interrupt:          IMU_INT_PIN != machine.NoPin,
	}, clock)
	if IMU_INT_PIN != machine.NoPin {
		IMU_INT_PIN.Configure(machine.PinConfig{Mode: machine.PinInput})
		IMU_INT_PIN.SetInterrupt(machine.PinRising, func(machine.Pin) {
			sensor.DataReady()
		})
	}
	return sensor
}

// batteryADC reads the battery divider in volts.
type batteryADC struct {
	adc machine.ADC
}

func (b batteryADC) Read() float32 {
	return float32(b.adc.Get()) / 65535 * ADC_REFERENCE * VOLTAGE_DIVIDER
}

func setupBattery() flight.ScalarSensor {
	if BATTERY_PIN == machine.NoPin {
		return nil
	}
	machine.InitADC()
	adc := machine.ADC{Pin: BATTERY_PIN}
	adc.Configure(machine.ADCConfig{})
	return batteryADC{adc: adc}
}
