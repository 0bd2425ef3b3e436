package integrators

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/bioreact/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// Continuous extension of order 4. Row s holds the coefficients of
// theta, theta^2, theta^3, theta^4 in the weight of stage s.
var dense = [7][4]float64{
	{1, -8048581381.0 / 2820520608.0, 8663915743.0 / 2820520608.0, -12715105075.0 / 11282082432.0},
	{0, 0, 0, 0},
	{0, 131558114200.0 / 32700410799.0, -68118460800.0 / 10900136933.0, 87487479700.0 / 32700410799.0},
	{0, -1754552775.0 / 470086768.0, 14199869525.0 / 1410260304.0, -10690763975.0 / 1880347072.0},
	{0, 127303824393.0 / 49829197408.0, -318862633887.0 / 49829197408.0, 701980252875.0 / 199316789632.0},
	{0, -282668133.0 / 205662961.0, 2019193451.0 / 616988883.0, -1453857185.0 / 822651844.0},
	{0, 40617522.0 / 29380423.0, -110615467.0 / 29380423.0, 69997945.0 / 29380423.0},
}

// errorExponent is -1/(q+1) for the embedded order q = 4.
const errorExponent = -0.2

type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

// stages holds the seven slopes of one Dormand-Prince step. k[6] is the
// derivative at the step end (first same as last).
type stages [7]dynamo.State

// attempt takes one trial step of size dt from (t, x) given k1 = f(t, x).
// It returns the fifth-order solution, the stages and the raw local error
// estimate. ok is false when any stage evaluates to a non-finite value.
func (r *RK45) attempt(dyn dynamo.System, x, k1 dynamo.State, u dynamo.Control, t, dt float64) (xNew dynamo.State, k stages, errEst dynamo.State, ok bool) {
	n := len(x)
	k[0] = k1

	x2 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x2[i] = x[i] + dt*b21*k[0][i]
	}
	k[1] = dyn.Derive(x2, u, t+a2*dt)

	x3 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x3[i] = x[i] + dt*(b31*k[0][i]+b32*k[1][i])
	}
	k[2] = dyn.Derive(x3, u, t+a3*dt)

	x4 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x4[i] = x[i] + dt*(b41*k[0][i]+b42*k[1][i]+b43*k[2][i])
	}
	k[3] = dyn.Derive(x4, u, t+a4*dt)

	x5 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x5[i] = x[i] + dt*(b51*k[0][i]+b52*k[1][i]+b53*k[2][i]+b54*k[3][i])
	}
	k[4] = dyn.Derive(x5, u, t+a5*dt)

	x6 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x6[i] = x[i] + dt*(b61*k[0][i]+b62*k[1][i]+b63*k[2][i]+b64*k[3][i]+b65*k[4][i])
	}
	k[5] = dyn.Derive(x6, u, t+dt)

	xNew = make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + dt*(c1*k[0][i]+c3*k[2][i]+c4*k[3][i]+c5*k[4][i]+c6*k[5][i])
	}

	k[6] = dyn.Derive(xNew, u, t+dt)

	for s := 1; s < len(k); s++ {
		if len(k[s]) != n || !k[s].IsValid() {
			return xNew, k, nil, false
		}
	}
	if !xNew.IsValid() {
		return xNew, k, nil, false
	}

	errEst = make(dynamo.State, n)
	for i := 0; i < n; i++ {
		errEst[i] = dt * (dc1*k[0][i] + dc3*k[2][i] + dc4*k[3][i] + dc5*k[4][i] + dc6*k[5][i] + dc7*k[6][i])
	}
	return xNew, k, errEst, true
}

// errorNorm is the RMS of the local error scaled by atol + rtol*max(|x|, |xNew|).
func errorNorm(errEst, x, xNew dynamo.State, rtol, atol float64) float64 {
	scaled := make([]float64, len(errEst))
	for i := range errEst {
		sc := atol + math.Max(math.Abs(x[i]), math.Abs(xNew[i]))*rtol
		scaled[i] = errEst[i] / sc
	}
	return rms(scaled)
}

func rms(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, 2) / math.Sqrt(float64(len(v)))
}

// interpolate evaluates the continuous extension of the step that starts
// at x with size dt, at fraction theta in [0, 1] of the step.
func interpolate(x dynamo.State, k *stages, dt, theta float64) dynamo.State {
	var w [7]float64
	for s := range dense {
		p := dense[s]
		w[s] = theta * (p[0] + theta*(p[1]+theta*(p[2]+theta*p[3])))
	}

	out := make(dynamo.State, len(x))
	for i := range x {
		sum := 0.0
		for s := range w {
			sum += w[s] * k[s][i]
		}
		out[i] = x[i] + dt*sum
	}
	return out
}

// nextScale returns the factor applied to dt after an attempt with the
// given scaled error norm.
func (r *RK45) nextScale(errNorm float64, accepted bool) float64 {
	if accepted {
		if errNorm == 0 {
			return r.maxScale
		}
		return math.Min(r.maxScale, r.safety*math.Pow(errNorm, errorExponent))
	}
	return math.Max(r.minScale, r.safety*math.Pow(errNorm, errorExponent))
}

// Step advances x by dt with the fifth-order solution, ignoring the error
// estimate.
func (r *RK45) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	newX, _, _ := r.StepAdaptive(dyn, x, u, t, dt, 1e-6)
	return newX
}

// StepAdaptive takes one step of size dt and proposes the next step size.
// tol serves as both the relative and the absolute tolerance. The returned
// state is the trial solution whether or not the error test passed; Solve
// is the entry point for whole integrations.
func (r *RK45) StepAdaptive(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt, tol float64) (dynamo.State, float64, error) {
	k1 := dyn.Derive(x, u, t)
	if !k1.IsValid() {
		return x, dt, dynamo.ErrNonFinite
	}

	xNew, _, errEst, ok := r.attempt(dyn, x, k1, u, t, dt)
	if !ok {
		return xNew, dt, dynamo.ErrNonFinite
	}

	errNorm := errorNorm(errEst, x, xNew, tol, tol)
	return xNew, dt * r.nextScale(errNorm, errNorm < 1), nil
}
