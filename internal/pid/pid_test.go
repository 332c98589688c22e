package pid

import (
	"math"
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Kp: 1, Ki: 1, Kd: 1,
		OutMin: -400, OutMax: 400,
		IntMin: -50, IntMax: 50,
	}
}

func newTestController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func TestNew_RejectsEmptyLimits(t *testing.T) {
	cfg := testConfig()
	cfg.OutMin, cfg.OutMax = 1, 1
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrLimits)

	cfg = testConfig()
	cfg.IntMin, cfg.IntMax = 5, -5
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrLimits)
}

func TestUpdate_FirstCallIsProportionalOnly(t *testing.T) {
	p := newTestController(t, testConfig())

	out := p.Update(10, 0, 1000)
	assert.Equal(t, float32(10), out)
	assert.Zero(t, p.Integrator())

	// dt = 10ms: I = 10*0.01, D = 0 as the error did not change.
	out = p.Update(10, 0, 11_000)
	assert.InDelta(t, 10.1, out, 1e-4)
	assert.InDelta(t, 0.1, p.Integrator(), 1e-6)
}

func TestUpdate_DerivativeOfError(t *testing.T) {
	cfg := testConfig()
	cfg.Kp, cfg.Ki = 0, 0
	p := newTestController(t, cfg)

	p.Update(0, 0, 0)
	out := p.Update(1, 0, 10_000) // error rose by 1 in 10ms
	assert.InDelta(t, 100, out, 1e-3)
}

func TestUpdate_ZeroDtSkipsIntegralAndDerivative(t *testing.T) {
	p := newTestController(t, testConfig())

	p.Update(5, 0, 2000)
	out := p.Update(20, 0, 2000)
	assert.False(t, math32.IsNaN(out))
	assert.False(t, math32.IsInf(out, 0))
	assert.Equal(t, float32(20), out)
	assert.Zero(t, p.Integrator())
}

func TestUpdate_MaxDtSkipsIntegration(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDt = 100_000
	p := newTestController(t, cfg)

	p.Update(1, 0, 0)
	p.Update(1, 0, 10_000_000)
	assert.Zero(t, p.Integrator())

	p.Update(1, 0, 10_050_000)
	assert.InDelta(t, 0.05, p.Integrator(), 1e-6)
}

func TestUpdate_TimestampWraparound(t *testing.T) {
	p := newTestController(t, testConfig())
	p.Update(1, 0, math.MaxUint32-4999)
	p.Update(1, 0, 5000) // 10ms later, across the wrap
	assert.InDelta(t, 0.01, p.Integrator(), 1e-6)
}

func TestUpdate_TargetEqualsMeasurementGivesZero(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	p := newTestController(t, testConfig())
	now := uint32(0)
	for i := 0; i < 500; i++ {
		v := (rng.Float32() - 0.5) * 2e4
		now += uint32(rng.Intn(20_000))
		assert.Zero(t, p.Update(v, v, now))
	}
	assert.Zero(t, p.Integrator())
}

func TestUpdate_OutputWithinClamp(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	cfg := Config{
		Kp: 3, Ki: 20, Kd: 0.5,
		OutMin: -250, OutMax: 150,
		IntMin: -10, IntMax: 10,
	}
	p := newTestController(t, cfg)
	now := uint32(rng.Uint32())
	for i := 0; i < 5000; i++ {
		target := (rng.Float32() - 0.5) * 2e6
		measurement := (rng.Float32() - 0.5) * 2e6
		now += uint32(rng.Intn(1_000_000))
		out := p.Update(target, measurement, now)
		require.False(t, math32.IsNaN(out))
		assert.GreaterOrEqual(t, out, cfg.OutMin)
		assert.LessOrEqual(t, out, cfg.OutMax)
		assert.GreaterOrEqual(t, p.Integrator(), cfg.IntMin)
		assert.LessOrEqual(t, p.Integrator(), cfg.IntMax)
	}
}

func TestUpdate_AntiWindup(t *testing.T) {
	cfg := testConfig()
	cfg.IntMin, cfg.IntMax = -1, 1
	p := newTestController(t, cfg)
	now := uint32(0)
	for i := 0; i < 1000; i++ {
		p.Update(100, 0, now)
		now += 10_000
	}
	assert.Equal(t, float32(1), p.Integrator())
}

func TestReset_MatchesFreshController(t *testing.T) {
	p := newTestController(t, testConfig())
	now := uint32(0)
	for i := 0; i < 100; i++ {
		p.Update(30, float32(i), now)
		now += 4000
	}
	require.NotZero(t, p.Integrator())

	p.Reset()
	assert.Zero(t, p.Integrator())
	assert.Zero(t, p.Output())

	fresh := newTestController(t, testConfig())
	for i := 0; i < 10; i++ {
		now += 4000
		target, measurement := float32(12), float32(i)*0.5
		assert.Equal(t, fresh.Update(target, measurement, now), p.Update(target, measurement, now))
	}
}

func TestUpdate_NaNHoldsLastOutput(t *testing.T) {
	p := newTestController(t, testConfig())
	out := p.Update(3, 1, 100)
	assert.Equal(t, out, p.Update(math32.NaN(), 0, 200))
	assert.Equal(t, out, p.Update(0, math32.Inf(-1), 300))
	assert.Zero(t, p.Integrator())
}
