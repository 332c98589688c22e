//go:build tinygo

package main

import (
	"machine"

	"github.com/BryanSouza91/RotorFC/internal/config"
	"github.com/BryanSouza91/RotorFC/internal/receiver"
)

// RotorFC firmware configuration
// Board pin mappings and the parameters that differ from config.Default

// --- Receiver ---
const (
	// Set protocol: PROTOCOL_PWM, PROTOCOL_IBUS, PROTOCOL_CRSF, PROTOCOL_ELRS
	activeProtocol = receiver.PROTOCOL_PWM
)

// PWM receiver lines in channel order: thrust, yaw, pitch, roll, arm.
var rxPins = [5]machine.Pin{machine.D6, machine.D7, machine.D8, machine.D9, machine.D10}

// --- ESC outputs ---
// Motor order follows the mixer geometry of the configured frame.
var (
	escPWM  = machine.PWM0
	escPins = []machine.Pin{machine.D0, machine.D1, machine.D2, machine.D3}
)

// --- Sensors ---
const (
	// IMU_INT_PIN is the LSM6DS3TR data-ready line. machine.NoPin polls
	// the device every cycle instead.
	IMU_INT_PIN = machine.NoPin

	// BATTERY_PIN is the ADC input of the battery voltage divider.
	// machine.NoPin disables battery monitoring.
	BATTERY_PIN = machine.NoPin
	// VOLTAGE_DIVIDER is the ratio of the battery divider.
	VOLTAGE_DIVIDER = 11.0
	ADC_REFERENCE   = 3.3
)

// --- Status ---
const LED_PIN = machine.LED

// WATCHDOG_TIMEOUT_MS resets the board when the loop stalls.
const WATCHDOG_TIMEOUT_MS = 500

func flightConfig() *config.Config {
	cfg := config.Default()
	cfg.Receiver.Protocol = activeProtocol
	return cfg
}
