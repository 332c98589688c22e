package imu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers/lsm6ds3tr"

	"github.com/BryanSouza91/RotorFC/internal/flight"
)

var _ flight.Sensor = (*IMU)(nil)

type fakeDevice struct {
	configured   *lsm6ds3tr.Configuration
	configureErr error
	connected    bool

	accel, gyro [3]int32
	temp        int32
	readErr     error
	gyroReads   int
}

func (d *fakeDevice) Configure(cfg lsm6ds3tr.Configuration) error {
	d.configured = &cfg
	return d.configureErr
}

func (d *fakeDevice) Connected() bool { return d.connected }

func (d *fakeDevice) ReadAcceleration() (int32, int32, int32, error) {
	return d.accel[0], d.accel[1], d.accel[2], d.readErr
}

func (d *fakeDevice) ReadRotation() (int32, int32, int32, error) {
	d.gyroReads++
	return d.gyro[0], d.gyro[1], d.gyro[2], d.readErr
}

func (d *fakeDevice) ReadTemperature() (int32, error) { return d.temp, d.readErr }

type testClock struct{ now uint32 }

func (c *testClock) read() uint32 { return c.now }

func level() *fakeDevice {
	return &fakeDevice{connected: true, accel: [3]int32{0, 0, 1_000_000}, temp: 31_500}
}

func newIMU(t *testing.T, dev *fakeDevice, cfg Config) (*IMU, *testClock) {
	t.Helper()
	clk := &testClock{}
	m := New(dev, cfg, clk.read)
	require.True(t, m.Prepare())
	return m, clk
}

func TestPrepare_ConfiguresDevice(t *testing.T) {
	dev := level()
	newIMU(t, dev, Config{CalibrationSamples: 10})
	require.NotNil(t, dev.configured)
	assert.Equal(t, DeviceConfig, *dev.configured)
	// Calibration plus the seeding sample.
	assert.Equal(t, 11, dev.gyroReads)
}

func TestPrepare_Failures(t *testing.T) {
	dev := level()
	dev.configureErr = errors.New("nack")
	m := New(dev, Config{}, (&testClock{}).read)
	assert.False(t, m.Prepare())
	assert.False(t, m.IsReady())

	dev = level()
	dev.connected = false
	assert.False(t, New(dev, Config{}, (&testClock{}).read).Prepare())

	dev = level()
	dev.readErr = errors.New("bus")
	m = New(dev, Config{CalibrationSamples: 20}, (&testClock{}).read)
	assert.False(t, m.Prepare())
	assert.Equal(t, uint32(20), m.ReadErrors())
}

func TestPrepare_GyroBias(t *testing.T) {
	dev := level()
	dev.gyro = [3]int32{1_500_000, -2_000_000, 250_000} // dps in micro units
	m, clk := newIMU(t, dev, Config{CalibrationSamples: 100})

	bias := m.Bias()
	assert.InDelta(t, 1.5, bias[0], 1e-4)
	assert.InDelta(t, -2, bias[1], 1e-4)
	assert.InDelta(t, 0.25, bias[2], 1e-4)

	for i := 0; i < 50; i++ {
		clk.now += 10_000
		require.True(t, m.IsReady())
	}
	assert.InDelta(t, 0, m.RollRate(), 1e-4)
	assert.InDelta(t, 0, m.PitchRate(), 1e-4)
	assert.InDelta(t, 0, m.YawRate(), 1e-4)
	assert.InDelta(t, 0, m.YawAngle(), 1e-3)
	assert.InDelta(t, 0, m.RollAngle(), 1e-3)
}

func TestIsReady_TiltFromAccel(t *testing.T) {
	dev := level()
	dev.accel = [3]int32{0, 500_000, 866_025} // 30 degrees of roll
	m, clk := newIMU(t, dev, Config{})
	assert.InDelta(t, 30, m.RollAngle(), 0.01)

	dev.accel = [3]int32{-500_000, 0, 866_025} // 30 degrees of pitch
	for i := 0; i < 500; i++ {
		clk.now += 10_000
		require.True(t, m.IsReady())
	}
	assert.InDelta(t, 30, m.PitchAngle(), 0.5)
	assert.InDelta(t, 0, m.RollAngle(), 0.5)
}

func TestIsReady_IntegratesYaw(t *testing.T) {
	dev := level()
	m, clk := newIMU(t, dev, Config{})
	dev.gyro[2] = 90_000_000 // 90 dps
	for i := 0; i < 100; i++ {
		clk.now += 10_000
		require.True(t, m.IsReady())
	}
	// First sample uses the nominal rate, the rest the measured 10ms.
	assert.InDelta(t, 90*(0.99+1.0/104), m.YawAngle(), 0.01)
	assert.InDelta(t, 90, m.YawRate(), 1e-3)

	for i := 0; i < 200; i++ {
		clk.now += 10_000
		m.IsReady()
	}
	assert.LessOrEqual(t, m.YawAngle(), float32(180))
	assert.Greater(t, m.YawAngle(), float32(-180))
}

func TestIsReady_Interrupt(t *testing.T) {
	m, _ := newIMU(t, level(), Config{Interrupt: true})
	assert.False(t, m.IsReady())
	m.DataReady()
	assert.True(t, m.IsReady())
	assert.False(t, m.IsReady())
}

func TestIsReady_ReadErrorHoldsSample(t *testing.T) {
	dev := level()
	dev.accel = [3]int32{0, 500_000, 866_025}
	m, clk := newIMU(t, dev, Config{})
	before := m.RollAngle()

	dev.readErr = errors.New("bus")
	clk.now += 10_000
	assert.False(t, m.IsReady())
	assert.Equal(t, before, m.RollAngle())
	assert.Equal(t, uint32(1), m.ReadErrors())
}

func TestInvert(t *testing.T) {
	dev := level()
	dev.accel = [3]int32{0, 500_000, -866_025}
	dev.gyro = [3]int32{10_000_000, 0, 0}
	m, _ := newIMU(t, dev, Config{InvertZ: true, InvertX: true})

	assert.InDelta(t, 30, m.RollAngle(), 0.01)
	assert.True(t, m.IsReady())
	assert.InDelta(t, -10, m.RollRate(), 1e-4)
}

func TestTemperature(t *testing.T) {
	m, _ := newIMU(t, level(), Config{})
	assert.InDelta(t, 31.5, m.Temperature(), 1e-4)
}

func TestKalman_PredictIntegratesRates(t *testing.T) {
	kf := NewKalman()
	kf.Predict(10, -20, 0.5)
	assert.InDelta(t, 5, kf.Pitch(), 1e-5)
	assert.InDelta(t, -10, kf.Roll(), 1e-5)
	assert.InDelta(t, 1.01, kf.P[0][0], 1e-5)
}

func TestKalman_UpdatePullsTowardMeasurement(t *testing.T) {
	kf := NewKalman()
	for i := 0; i < 200; i++ {
		kf.Predict(0, 0, 0.01)
		require.True(t, kf.Update(12, -7))
	}
	assert.InDelta(t, 12, kf.Pitch(), 0.01)
	assert.InDelta(t, -7, kf.Roll(), 0.01)
}

func TestKalman_SingularInnovationSkipsUpdate(t *testing.T) {
	kf := NewKalman()
	kf.P = mat2{}
	kf.R = mat2{}
	kf.X = vec2{1, 2}
	assert.False(t, kf.Update(5, 5))
	assert.Equal(t, vec2{1, 2}, kf.X)
}

func TestMat2Inverse(t *testing.T) {
	m := mat2{{4, 7}, {2, 6}}
	inv, ok := m.inverse()
	require.True(t, ok)
	p := m.mul(inv)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, identity[i][j], p[i][j], 1e-5)
		}
	}
}
