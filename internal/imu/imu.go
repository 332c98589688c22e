// Package imu adapts an LSM6DS3TR accelerometer/gyroscope to the flight
// loop's orientation sensor.
package imu

import (
	"sync/atomic"

	"github.com/chewxy/math32"
	"tinygo.org/x/drivers/lsm6ds3tr"
)

// Device is the subset of *lsm6ds3tr.Device the adapter uses.
//
// The driver returns values in micro-g for accel, micro-dps for gyro and
// milli-degrees Celsius for temperature.
type Device interface {
	Configure(cfg lsm6ds3tr.Configuration) error
	Connected() bool
	ReadAcceleration() (x, y, z int32, err error)
	ReadRotation() (x, y, z int32, err error)
	ReadTemperature() (int32, error)
}

var _ Device = (*lsm6ds3tr.Device)(nil)

// DeviceConfig is the sensor setup used for flight: 8g, 1000dps, 104Hz.
var DeviceConfig = lsm6ds3tr.Configuration{
	AccelRange:      lsm6ds3tr.ACCEL_8G,
	AccelSampleRate: lsm6ds3tr.ACCEL_SR_104,
	GyroRange:       lsm6ds3tr.GYRO_1000DPS,
	GyroSampleRate:  lsm6ds3tr.GYRO_SR_104,
}

const (
	microToUnit = 1e-6
	radToDeg    = 180 / math32.Pi

	// Temperature is informational; it is read once every this many samples.
	tempEvery = 64
)

// Config holds mounting and calibration settings.
type Config struct {
	// Invert flips the sign of an axis for both accel and gyro, for boards
	// mounted upside down or rotated.
	InvertX, InvertY, InvertZ bool
	// CalibrationSamples gyro readings are averaged into the bias at
	// Prepare. Zero skips calibration.
	CalibrationSamples int
	// Interrupt means samples are only read after DataReady has been
	// called. Otherwise every IsReady call reads the device.
	Interrupt bool
	// SampleRate is the nominal output rate in Hz, used for the first dt.
	SampleRate float32
}

// IMU estimates pitch and roll with a Kalman filter over gyro and accel,
// and integrates the yaw rate for heading.
type IMU struct {
	dev   Device
	cfg   Config
	clock func() uint32
	kf    *Kalman

	dataReady atomic.Bool

	prepared   bool
	haveSample bool
	last       uint32
	samples    uint32
	readErrors uint32

	bias  [3]float32 // dps
	accel [3]float32 // g
	gyro  [3]float32 // dps, bias removed
	yaw   float32
	temp  float32
}

// New returns an adapter for dev. clock is a microsecond counter.
func New(dev Device, cfg Config, clock func() uint32) *IMU {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 104
	}
	return &IMU{dev: dev, cfg: cfg, clock: clock, kf: NewKalman()}
}

// DataReady is called from the sensor's data-ready pin interrupt.
func (m *IMU) DataReady() {
	m.dataReady.Store(true)
}

// Prepare configures the device, checks it responds and calibrates the
// gyro bias. The airframe must be still.
func (m *IMU) Prepare() bool {
	m.prepared = false
	if err := m.dev.Configure(DeviceConfig); err != nil {
		return false
	}
	if !m.dev.Connected() {
		return false
	}
	if !m.calibrate() {
		return false
	}
	if !m.read() {
		return false
	}
	m.kf.Reset(m.accelPitch(), m.accelRoll())
	m.yaw = 0
	m.readTemperature()
	m.prepared = true
	m.haveSample = false
	return true
}

func (m *IMU) calibrate() bool {
	m.bias = [3]float32{}
	if m.cfg.CalibrationSamples <= 0 {
		return true
	}
	var sum [3]float32
	n := 0
	for i := 0; i < m.cfg.CalibrationSamples; i++ {
		x, y, z, err := m.dev.ReadRotation()
		if err != nil {
			m.readErrors++
			continue
		}
		sum[0] += float32(x) * microToUnit
		sum[1] += float32(y) * microToUnit
		sum[2] += float32(z) * microToUnit
		n++
	}
	// Too many failed reads means the bias cannot be trusted.
	if n < m.cfg.CalibrationSamples/2 || n == 0 {
		return false
	}
	for i := range sum {
		m.bias[i] = sum[i] / float32(n)
	}
	return true
}

// read fetches one accel and gyro sample.
func (m *IMU) read() bool {
	ax, ay, az, err := m.dev.ReadAcceleration()
	if err != nil {
		m.readErrors++
		return false
	}
	gx, gy, gz, err := m.dev.ReadRotation()
	if err != nil {
		m.readErrors++
		return false
	}
	m.accel = [3]float32{float32(ax) * microToUnit, float32(ay) * microToUnit, float32(az) * microToUnit}
	m.gyro = [3]float32{
		float32(gx)*microToUnit - m.bias[0],
		float32(gy)*microToUnit - m.bias[1],
		float32(gz)*microToUnit - m.bias[2],
	}
	for i, inv := range [3]bool{m.cfg.InvertX, m.cfg.InvertY, m.cfg.InvertZ} {
		if inv {
			m.accel[i] = -m.accel[i]
			m.gyro[i] = -m.gyro[i]
		}
	}
	return true
}

func (m *IMU) readTemperature() {
	if t, err := m.dev.ReadTemperature(); err == nil {
		m.temp = float32(t) / 1000
	}
}

// IsReady reads a new sample when one is available and updates the
// estimate. It reports false when there is no new sample.
func (m *IMU) IsReady() bool {
	if !m.prepared {
		return false
	}
	if m.cfg.Interrupt && !m.dataReady.Swap(false) {
		return false
	}
	if !m.read() {
		return false
	}

	now := m.clock()
	dt := 1 / m.cfg.SampleRate
	if m.haveSample {
		dt = float32(now-m.last) * microToUnit
	}
	m.last = now
	m.haveSample = true

	m.kf.Predict(m.gyro[1], m.gyro[0], dt)
	m.kf.Update(m.accelPitch(), m.accelRoll())
	m.yaw = wrap180(m.yaw + m.gyro[2]*dt)

	m.samples++
	if m.samples%tempEvery == 0 {
		m.readTemperature()
	}
	return true
}

// accelPitch calculates the pitch angle in degrees from accelerometer data.
func (m *IMU) accelPitch() float32 {
	x, y, z := m.accel[0], m.accel[1], m.accel[2]
	return math32.Atan2(-x, math32.Sqrt(y*y+z*z)) * radToDeg
}

// accelRoll calculates the roll angle in degrees from accelerometer data.
func (m *IMU) accelRoll() float32 {
	return math32.Atan2(m.accel[1], m.accel[2]) * radToDeg
}

func wrap180(deg float32) float32 {
	for deg > 180 {
		deg -= 360
	}
	for deg <= -180 {
		deg += 360
	}
	return deg
}

func (m *IMU) YawAngle() float32   { return m.yaw }
func (m *IMU) PitchAngle() float32 { return m.kf.Pitch() }
func (m *IMU) RollAngle() float32  { return m.kf.Roll() }

func (m *IMU) YawRate() float32   { return m.gyro[2] }
func (m *IMU) PitchRate() float32 { return m.gyro[1] }
func (m *IMU) RollRate() float32  { return m.gyro[0] }

// Temperature returns the die temperature in degrees Celsius.
func (m *IMU) Temperature() float32 { return m.temp }

// Bias returns the calibrated gyro bias in dps for x, y and z.
func (m *IMU) Bias() [3]float32 { return m.bias }

// ReadErrors counts failed bus reads since New.
func (m *IMU) ReadErrors() uint32 { return m.readErrors }
