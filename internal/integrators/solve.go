package integrators

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/bioreact/internal/dynamo"
)

// Name identifies the method in configs and run metadata.
func (r *RK45) Name() string { return "dopri5" }

// Solve integrates dyn from tEval[0] to cfg.TEnd with adaptive step-size
// control and samples the solution at every time in tEval.
//
// tEval must be strictly increasing and end no later than cfg.TEnd; when
// cfg.TEnd is zero the last sample time is used. Samples falling inside a
// step come from the dense output of that step, so the step sequence does
// not depend on tEval. The first sample is x0 itself.
//
// On failure the samples reached so far are returned together with an
// *dynamo.IntegrationFailure.
func (r *RK45) Solve(ctx context.Context, dyn dynamo.System, x0 dynamo.State, u dynamo.Control, tEval []float64, cfg dynamo.Config) (*dynamo.Trajectory, dynamo.Stats, error) {
	var stats dynamo.Stats

	if err := cfg.Validate(); err != nil {
		return nil, stats, err
	}
	cfg = cfg.WithDefaults()

	if len(x0) != dyn.StateDim() {
		return nil, stats, fmt.Errorf("%w: state has %d components, system expects %d", dynamo.ErrDimensionMismatch, len(x0), dyn.StateDim())
	}
	if len(u) != dyn.ControlDim() {
		return nil, stats, fmt.Errorf("%w: control has %d components, system expects %d", dynamo.ErrDimensionMismatch, len(u), dyn.ControlDim())
	}
	if err := checkGrid(tEval, &cfg); err != nil {
		return nil, stats, err
	}

	t := tEval[0]
	tEnd := cfg.TEnd
	x := x0.Clone()

	traj := dynamo.NewTrajectory(len(tEval))
	traj.Append(t, x0.Clone())
	next := 1

	fail := func(wrapped error) (*dynamo.Trajectory, dynamo.Stats, error) {
		return traj, stats, &dynamo.IntegrationFailure{
			Step:    stats.Steps,
			Time:    t,
			State:   x.Clone(),
			Wrapped: wrapped,
		}
	}

	f := dyn.Derive(x, u, t)
	stats.Evaluations++
	if len(f) != len(x) || !f.IsValid() {
		return fail(dynamo.ErrNonFinite)
	}

	dt := cfg.InitialStep
	if dt == 0 {
		dt = r.initialStep(dyn, x, f, u, t, tEnd, cfg, &stats)
	}

	rejectedLast := false
	nonFiniteLast := false
	attempts := 0

	for t < tEnd {
		select {
		case <-ctx.Done():
			return fail(fmt.Errorf("%w: %w", dynamo.ErrCanceled, ctx.Err()))
		default:
		}

		if attempts >= cfg.MaxSteps {
			return fail(fmt.Errorf("%w: %d attempts without reaching t=%g", dynamo.ErrMaxSteps, attempts, tEnd))
		}
		attempts++

		dt = math.Min(dt, cfg.MaxStep)
		minStep := 10 * (math.Nextafter(t, math.Inf(1)) - t)
		if dt < minStep {
			if nonFiniteLast {
				return fail(fmt.Errorf("%w: no finite step from t=%g", dynamo.ErrNonFinite, t))
			}
			return fail(fmt.Errorf("%w: dt=%g", dynamo.ErrStepTooSmall, dt))
		}

		tNew := t + dt
		if tNew >= tEnd {
			tNew = tEnd
		}
		dt = tNew - t

		xNew, k, errEst, ok := r.attempt(dyn, x, f, u, t, dt)
		stats.Evaluations += 6
		if !ok {
			// A trial step may leave the domain of the right-hand side
			// where the solution itself does not.
			dt *= r.minScale
			rejectedLast = true
			nonFiniteLast = true
			stats.Rejected++
			continue
		}
		nonFiniteLast = false

		errNorm := errorNorm(errEst, x, xNew, cfg.RelTol, cfg.AbsTol)
		if math.IsNaN(errNorm) {
			return fail(dynamo.ErrNonFinite)
		}
		if errNorm >= 1 {
			dt *= r.nextScale(errNorm, false)
			rejectedLast = true
			stats.Rejected++
			continue
		}

		for next < len(tEval) && tEval[next] <= tNew {
			te := tEval[next]
			if te == tNew {
				traj.Append(te, xNew.Clone())
			} else {
				traj.Append(te, interpolate(x, &k, dt, (te-t)/dt))
			}
			next++
		}

		scale := r.nextScale(errNorm, true)
		if rejectedLast {
			scale = math.Min(1, scale)
		}

		stats.Steps++
		stats.LastStep = dt
		t = tNew
		x = xNew
		f = k[6]
		dt *= scale
		rejectedLast = false
	}

	return traj, stats, nil
}

// checkGrid validates the sample times against the end time, defaulting
// cfg.TEnd to the last sample when unset.
func checkGrid(tEval []float64, cfg *dynamo.Config) error {
	if len(tEval) == 0 {
		return dynamo.NewConfigError("times", nil, "evaluation grid is empty")
	}
	for i, v := range tEval {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return dynamo.NewConfigError("times", v, "must be finite")
		}
		if i > 0 && v <= tEval[i-1] {
			return dynamo.NewConfigError("times", v, fmt.Sprintf("not strictly increasing at index %d", i))
		}
	}
	if cfg.TEnd == 0 {
		cfg.TEnd = tEval[len(tEval)-1]
	}
	if math.IsNaN(cfg.TEnd) || math.IsInf(cfg.TEnd, 0) || cfg.TEnd <= tEval[0] {
		return dynamo.NewConfigError("t_end", cfg.TEnd, "must be finite and after the start time")
	}
	if last := tEval[len(tEval)-1]; last > cfg.TEnd {
		return dynamo.NewConfigError("times", last, "sample time beyond the end of the horizon")
	}
	return nil
}

// initialStep estimates a starting step from the size of the state and
// its derivative (Hairer, Norsett & Wanner, section II.4).
func (r *RK45) initialStep(dyn dynamo.System, x, f dynamo.State, u dynamo.Control, t, tEnd float64, cfg dynamo.Config, stats *dynamo.Stats) float64 {
	interval := tEnd - t
	n := len(x)

	sx := make([]float64, n)
	sf := make([]float64, n)
	for i := range x {
		sc := cfg.AbsTol + math.Abs(x[i])*cfg.RelTol
		sx[i] = x[i] / sc
		sf[i] = f[i] / sc
	}
	d0, d1 := rms(sx), rms(sf)

	h0 := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h0 = 0.01 * d0 / d1
	}
	h0 = math.Min(h0, interval)

	x1 := make(dynamo.State, n)
	for i := range x {
		x1[i] = x[i] + h0*f[i]
	}
	f1 := dyn.Derive(x1, u, t+h0)
	stats.Evaluations++
	if len(f1) != n || !f1.IsValid() {
		return math.Min(h0, cfg.MaxStep)
	}

	df := make([]float64, n)
	for i := range x {
		sc := cfg.AbsTol + math.Abs(x[i])*cfg.RelTol
		df[i] = (f1[i] - f[i]) / sc
	}
	d2 := rms(df) / h0

	var h1 float64
	if d1 <= 1e-15 && d2 <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/math.Max(d1, d2), -errorExponent)
	}

	return math.Min(math.Min(100*h0, h1), math.Min(interval, cfg.MaxStep))
}
