// Command fcsim runs the flight loop on a host against a simulated
// airframe. Pilot input comes from a built in stick script, a serial
// CRSF/ELRS/iBus receiver or PWM receiver lines on Linux GPIO.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/BryanSouza91/RotorFC/internal/config"
	"github.com/BryanSouza91/RotorFC/internal/flight"
	"github.com/BryanSouza91/RotorFC/internal/receiver"
	"github.com/BryanSouza91/RotorFC/internal/receiver/gpioedge"
	"github.com/BryanSouza91/RotorFC/internal/receiver/serialrx"
	"github.com/BryanSouza91/RotorFC/internal/sim"
)

var (
	configFlag   = flag.String("config", "fcsim.yaml", "Configuration file path")
	rxFlag       = flag.String("rx", "script", "Pilot input: script, serial or gpio")
	portFlag     = flag.String("p", "", "Serial port for -rx serial (e.g., /dev/ttyUSB0)")
	pinsFlag     = flag.String("pins", "GPIO5,GPIO6,GPIO13,GPIO19,GPIO26", "GPIO lines for thrust,yaw,pitch,roll,arm with -rx gpio")
	durationFlag = flag.Duration("duration", 0, "Stop after this much simulated time (0 = script length or forever)")
	realtimeFlag = flag.Bool("realtime", false, "Pace the loop to wall clock time (always on for serial and gpio)")
	reportFlag   = flag.Duration("report", time.Second, "Status line interval (0 = off)")
	upsetFlag    = flag.Float64("upset", 0, "Roll the airframe by this many degrees two seconds after arming")
	saveFlag     = flag.Bool("save-config", false, "Write the effective configuration to -config and exit")
	verboseFlag  = flag.Bool("v", false, "Debug logging")
)

var logger = logrus.New()

func initLogger() {
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)
	if *verboseFlag {
		logger.SetLevel(logrus.DebugLevel)
	}
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
}

func main() {
	flag.Parse()
	initLogger()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if *saveFlag {
		if err := cfg.Save(*configFlag); err != nil {
			logger.Fatalf("Failed to save configuration: %v", err)
		}
		logger.Infof("Configuration written to %s", *configFlag)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal(err)
	}
}

type input struct {
	in     sim.Inputs
	script *sim.Script
	sticks *sim.Sticks
	// start launches receiver goroutines once the runner clock exists.
	start func(ctx context.Context, clock func() uint32)
}

func run(ctx context.Context, cfg *config.Config) error {
	src, err := openInput(cfg)
	if err != nil {
		return err
	}

	r, err := sim.NewRunner(cfg, src.in, logger)
	if err != nil {
		return err
	}
	if src.start != nil {
		src.start(ctx, r.Clock)
	}
	if err := r.Init(); err != nil {
		// The loop keeps running degraded; arming stays refused.
		logger.WithError(err).Error("flight loop init")
	}

	duration := *durationFlag
	if duration == 0 && src.script != nil {
		duration = src.script.End() + 2*time.Second
	}
	realtime := *realtimeFlag || src.script == nil

	mon := newMonitor(logger, *reportFlag)
	var ticker *time.Ticker
	if realtime {
		ticker = time.NewTicker(cfg.Period())
		defer ticker.Stop()
	}

	var armedAt time.Duration
	var attempts uint32
	upsetDone := *upsetFlag == 0
	for duration == 0 || r.Elapsed() < duration {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		if src.script != nil {
			for _, st := range src.script.Advance(r.Elapsed(), src.sticks) {
				if st.Note != "" {
					logger.WithField("t", st.At.String()).Infof("sticks: %s", st.Note)
				}
			}
		}
		r.Tick()

		st := r.Loop.Status()
		if r.Switch != nil && r.Switch.Attempts() != attempts {
			attempts = r.Switch.Attempts()
			if err := r.Switch.Refused(); err != nil {
				logger.WithError(err).Warn("arming refused")
			}
		}
		mon.observe(r.Elapsed(), st, r)

		if !upsetDone && st.State == flight.StateArmed {
			if armedAt == 0 {
				armedAt = r.Elapsed()
			} else if r.Elapsed()-armedAt >= 2*time.Second {
				r.Air.SetAttitude(flight.Euler[float32]{Roll: float32(*upsetFlag)})
				logger.Infof("upset: roll %.0f degrees", *upsetFlag)
				upsetDone = true
			}
		}
	}

	volts, amps := r.Loop.Battery()
	logger.WithFields(logrus.Fields{
		"elapsed":  r.Elapsed().String(),
		"cycles":   r.Loop.Status().Cycles,
		"used_mah": int(r.Battery.Used()),
		"volts":    round1(volts),
		"amps":     round1(amps),
	}).Info("done")
	return nil
}

func openInput(cfg *config.Config) (*input, error) {
	rc := cfg.Receiver
	switch *rxFlag {
	case "script":
		sticks := sim.NewSticks()
		return &input{in: sticks.Inputs(), script: sim.DefaultScript(), sticks: sticks}, nil

	case "serial":
		if *portFlag == "" {
			ports, _ := serialrx.Ports()
			return nil, fmt.Errorf("missing -p, available ports: %s", strings.Join(ports, ", "))
		}
		protocol := rc.Protocol
		if protocol == receiver.PROTOCOL_PWM {
			protocol = receiver.PROTOCOL_CRSF
		}
		port, parser, err := serialrx.Open(*portFlag, protocol)
		if err != nil {
			return nil, err
		}
		var cells [5]*receiver.Cell
		for i, n := range []int{rc.ThrustChannel, rc.YawChannel, rc.PitchChannel, rc.RollChannel, rc.ArmChannel} {
			if cells[i], err = receiver.Select(parser, n); err != nil {
				port.Close()
				return nil, err
			}
		}
		logger.Infof("Receiver: %s on %s", protocol, *portFlag)
		return &input{
			in: sim.Inputs{Thrust: cells[0], Yaw: cells[1], Pitch: cells[2], Roll: cells[3], Arm: cells[4]},
			start: func(ctx context.Context, clock func() uint32) {
				go func() {
					defer port.Close()
					frames, err := serialrx.Pump(ctx, port, parser, clock)
					if err != nil && !errors.Is(err, context.Canceled) {
						logger.WithError(err).Error("receiver stopped")
					}
					logger.Infof("Receiver: %d frames", frames)
				}()
			},
		}, nil

	case "gpio":
		names := strings.Split(*pinsFlag, ",")
		if len(names) != 5 {
			return nil, fmt.Errorf("-pins needs 5 lines, got %d", len(names))
		}
		var readers [5]*receiver.Reader
		for i := range readers {
			readers[i] = receiver.NewReader(uint8(i))
		}
		return &input{
			in: sim.Inputs{Thrust: readers[0], Yaw: readers[1], Pitch: readers[2], Roll: readers[3], Arm: readers[4]},
			start: func(ctx context.Context, clock func() uint32) {
				for i, name := range names {
					pin, err := gpioedge.Open(strings.TrimSpace(name))
					if err != nil {
						logger.WithError(err).Error("receiver line")
						continue
					}
					go func(r *receiver.Reader) {
						if err := gpioedge.Watch(ctx, pin, r, clock); err != nil && !errors.Is(err, context.Canceled) {
							logger.WithError(err).Error("receiver line stopped")
						}
					}(readers[i])
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown -rx %q", *rxFlag)
}
