package mixer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMixer(t *testing.T, g Geometry) *Mixer {
	t.Helper()
	m, err := New(g, 1000, 2000)
	require.NoError(t, err)
	return m
}

func TestMix_ZeroCorrectionsEqualClampedThrust(t *testing.T) {
	m := newTestMixer(t, QuadX)
	out := make([]float32, m.Motors())

	for _, tt := range []struct{ thrust, want float32 }{
		{1000, 1000},
		{1375, 1375},
		{2000, 2000},
		{400, 1000},
		{2600, 2000},
	} {
		m.Mix(tt.thrust, 0, 0, 0, out)
		for i, v := range out {
			assert.Equal(t, tt.want, v, "motor %d thrust %v", i, tt.thrust)
		}
	}
}

func TestMix_QuadXSigns(t *testing.T) {
	m := newTestMixer(t, QuadX)
	out := make([]float32, 4)

	m.Mix(1500, 0, 0, 100, out) // roll right
	assert.Equal(t, []float32{1400, 1400, 1600, 1600}, out)

	m.Mix(1500, 0, 100, 0, out) // nose up
	assert.Equal(t, []float32{1600, 1400, 1400, 1600}, out)

	m.Mix(1500, 100, 0, 0, out) // nose right
	assert.Equal(t, []float32{1600, 1400, 1600, 1400}, out)
}

func TestMix_QuadPlusSigns(t *testing.T) {
	m := newTestMixer(t, QuadPlus)
	out := make([]float32, 4)
	m.Mix(1500, 0, 50, 20, out)
	assert.Equal(t, []float32{1550, 1480, 1450, 1520}, out)
}

func TestMix_StaysWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	for _, g := range []Geometry{QuadX, QuadPlus} {
		m := newTestMixer(t, g)
		out := make([]float32, m.Motors())
		for i := 0; i < 2000; i++ {
			r := func() float32 { return (rng.Float32() - 0.5) * 4000 }
			m.Mix(r()+1500, r(), r(), r(), out)
			for _, v := range out {
				assert.GreaterOrEqual(t, v, float32(1000))
				assert.LessOrEqual(t, v, float32(2000))
			}
		}
	}
}

func TestMix_SaturationIsPerMotor(t *testing.T) {
	m := newTestMixer(t, QuadX)
	out := make([]float32, 4)
	m.Mix(1950, 0, 0, 200, out)
	// Right motors drop by the full correction, left motors clip.
	assert.Equal(t, []float32{1750, 1750, 2000, 2000}, out)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Geometry{Name: "none"}, 0, 1)
	assert.ErrorIs(t, err, ErrGeometry)

	_, err = New(QuadX, 2000, 1000)
	assert.ErrorIs(t, err, ErrGeometry)

	_, err = New(Geometry{Name: "bad", Motors: []Signs{{Roll: 2}}}, 0, 1)
	assert.ErrorIs(t, err, ErrGeometry)
}

func TestLookup(t *testing.T) {
	g, err := Lookup("quadplus")
	require.NoError(t, err)
	assert.Equal(t, QuadPlus.Name, g.Name)

	g, err = Lookup("")
	require.NoError(t, err)
	assert.Equal(t, QuadX.Name, g.Name)

	_, err = Lookup("hexacopter")
	assert.ErrorIs(t, err, ErrGeometry)
}
