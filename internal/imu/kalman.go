package imu

// vec2 and mat2 are fixed size so the filter never allocates.
type vec2 [2]float32

type mat2 [2][2]float32

var identity = mat2{{1, 0}, {0, 1}}

func (m mat2) add(o mat2) mat2 {
	for i := range m {
		for j := range m[i] {
			m[i][j] += o[i][j]
		}
	}
	return m
}

func (m mat2) sub(o mat2) mat2 {
	for i := range m {
		for j := range m[i] {
			m[i][j] -= o[i][j]
		}
	}
	return m
}

func (m mat2) mul(o mat2) mat2 {
	var res mat2
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			res[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j]
		}
	}
	return res
}

func (m mat2) apply(v vec2) vec2 {
	return vec2{
		m[0][0]*v[0] + m[0][1]*v[1],
		m[1][0]*v[0] + m[1][1]*v[1],
	}
}

func (m mat2) transpose() mat2 {
	return mat2{{m[0][0], m[1][0]}, {m[0][1], m[1][1]}}
}

// inverse returns false for a singular matrix.
func (m mat2) inverse() (mat2, bool) {
	a, b, c, d := m[0][0], m[0][1], m[1][0], m[1][1]
	det := a*d - b*c
	if det == 0 {
		return mat2{}, false
	}
	inv := 1 / det
	return mat2{{d * inv, -b * inv}, {-c * inv, a * inv}}, true
}

// Kalman is a two state Kalman filter.
// State vector X: [pitch, roll] in degrees
// Measurement vector Z: [pitch_accel, roll_accel]
type Kalman struct {
	X vec2

	P mat2 // estimate error covariance
	Q mat2 // process noise covariance
	R mat2 // measurement noise covariance

	F mat2 // state transition
	H mat2 // observation
}

// NewKalman returns a filter that trusts the gyroscope (small Q) over the
// accelerometer (larger R).
func NewKalman() *Kalman {
	return &Kalman{
		P: identity,
		Q: mat2{{0.01, 0}, {0, 0.01}},
		R: mat2{{0.5, 0}, {0, 0.5}},
		F: identity,
		H: identity,
	}
}

// Reset sets the state to pitch and roll and the covariance to identity.
func (kf *Kalman) Reset(pitch, roll float32) {
	kf.X = vec2{pitch, roll}
	kf.P = identity
}

// Predict advances the state by the gyro rates (degrees/second) over dt
// seconds.
func (kf *Kalman) Predict(pitchRate, rollRate, dt float32) {
	kf.X = kf.F.apply(kf.X)
	kf.X[0] += pitchRate * dt
	kf.X[1] += rollRate * dt

	// P = F * P * F^T + Q
	kf.P = kf.F.mul(kf.P).mul(kf.F.transpose()).add(kf.Q)
}

// Update corrects the state with accelerometer angles. It reports false and
// leaves the state alone when the innovation covariance is singular.
func (kf *Kalman) Update(pitch, roll float32) bool {
	// Innovation y = z - H * x
	hx := kf.H.apply(kf.X)
	y := vec2{pitch - hx[0], roll - hx[1]}

	// S = H * P * H^T + R
	hT := kf.H.transpose()
	s := kf.H.mul(kf.P).mul(hT).add(kf.R)
	sInv, ok := s.inverse()
	if !ok {
		return false
	}

	// K = P * H^T * S^-1
	k := kf.P.mul(hT).mul(sInv)

	ky := k.apply(y)
	kf.X[0] += ky[0]
	kf.X[1] += ky[1]

	// P = (I - K * H) * P
	kf.P = identity.sub(k.mul(kf.H)).mul(kf.P)
	return true
}

// Pitch returns the estimated pitch in degrees.
func (kf *Kalman) Pitch() float32 { return kf.X[0] }

// Roll returns the estimated roll in degrees.
func (kf *Kalman) Roll() float32 { return kf.X[1] }
