//go:build tinygo

// Firmware for multi-rotor flight controllers built with TinyGo.
package main

import (
	"fmt"
	"machine"
	"time"

	"github.com/BryanSouza91/RotorFC/internal/flight"
	"github.com/BryanSouza91/RotorFC/internal/status"
)

const Version = "0.2.0"

var watchdog = machine.Watchdog

// console prints loop diagnostics to the serial console.
type console struct{}

func (console) Infof(format string, args ...interface{}) {
	println(fmt.Sprintf(format, args...))
}

func (console) Warnf(format string, args ...interface{}) {
	println("WARN", fmt.Sprintf(format, args...))
}

func (console) Errorf(format string, args ...interface{}) {
	println("ERROR", fmt.Sprintf(format, args...))
}

// halt keeps reporting err. The watchdog is not started yet.
func halt(msg string, err error) {
	for {
		println(msg, err.Error())
		time.Sleep(time.Second)
	}
}

func main() {
	time.Sleep(2 * time.Second)
	// Print startup message
	println("RotorFC - Version", Version)
	println("A TinyGo Flight Controller for Multi-Rotor Aircraft")

	cfg := flightConfig()
	if err := cfg.Validate(); err != nil {
		halt("invalid configuration:", err)
	}

	boot := time.Now()
	clock := func() uint32 {
		return uint32(time.Since(boot).Microseconds())
	}

	LED_PIN.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led := status.NewLED(LED_PIN)

	motors, err := setupESC(cfg)
	if err != nil {
		halt("could not configure ESC outputs:", err)
	}
	// Hold the minimum pulse so the ESCs initialise before anything else.
	motors.Stop(cfg.Motors.Min)
	println("PWM configured for", len(escPins), "ESCs.")

	in, err := setupReceiver(cfg, clock)
	if err != nil {
		halt("could not configure receiver:", err)
	}

	sensor := setupIMU(cfg, clock)
	time.Sleep(2 * time.Second)

	loop, err := flight.New(cfg, flight.Collaborators{
		Sensor:   sensor,
		Actuator: motors,
		Thrust:   in.thrust,
		Yaw:      in.yaw,
		Pitch:    in.pitch,
		Roll:     in.roll,
		Voltage:  setupBattery(),
		Clock:    clock,
		Logger:   console{},
	})
	if err != nil {
		halt("could not create flight loop:", err)
	}
	println("Calibrating gyro... keep the aircraft still!")
	if err := loop.Init(); err != nil {
		// Keep running: motors stay at idle and the LED shows the fault.
		println("Initialization failed:", err.Error())
	}
	arm := flight.NewArmSwitch(in.arm, cfg.Receiver.ArmHigh)

	watchdog.Configure(machine.WatchdogConfig{
		TimeoutMillis: WATCHDOG_TIMEOUT_MS,
	})
	watchdog.Start()

	ticker := time.NewTicker(cfg.Period())
	defer ticker.Stop()

	var last flight.Status
	var attempts uint32
	for {
		// Maintain a consistent loop timing
		<-ticker.C

		if in.poll != nil {
			in.poll(clock())
		}
		loop.Control()
		arm.Poll(loop)

		st := loop.Status()
		led.SetPattern(status.ForStatus(st))
		led.Update(clock())
		report(&last, st)
		if arm.Attempts() != attempts {
			attempts = arm.Attempts()
			if err := arm.Refused(); err != nil {
				println("Arming refused:", err.Error())
			}
		}

		// Keep the watchdog happy
		watchdog.Update()
	}
}

// report prints state transitions.
func report(last *flight.Status, st flight.Status) {
	if st.State != last.State {
		if st.State == flight.StateDisarmed && st.DisarmedBy != "" {
			println("Flight state:", st.State.String(), "by", st.DisarmedBy)
		} else {
			println("Flight state:", st.State.String())
		}
	}
	if st.Failsafe && !last.Failsafe {
		println("Receiver failsafe:", st.Fault.String(), st.FaultAxis.String())
	} else if !st.Failsafe && last.Failsafe {
		println("Receiver recovered.")
	}
	if st.ActuatorErr != nil && last.ActuatorErr == nil {
		println("ESC write failed:", st.ActuatorErr.Error())
	}
	*last = st
}
