package sim

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/bioreact/internal/bioreactor"
	"github.com/san-kum/bioreact/internal/dynamo"
)

// Simulator integrates the bioreactor model for one or many feed
// scenarios. It keeps no per-run state, so a single Simulator may run
// several sweeps at once.
type Simulator struct {
	model     *bioreactor.Model
	solver    Solver
	log       logrus.FieldLogger
	recorders []Recorder
}

func New(model *bioreactor.Model, solver Solver, log logrus.FieldLogger) *Simulator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Simulator{
		model:     model,
		solver:    solver,
		log:       log,
		recorders: make([]Recorder, 0),
	}
}

// AddRecorder registers r. Recorders are called from worker goroutines and
// must be safe for concurrent use.
func (s *Simulator) AddRecorder(r Recorder) { s.recorders = append(s.recorders, r) }

func (s *Simulator) Model() *bioreactor.Model { return s.model }

// Run integrates a single scenario. The returned error is non-nil only for
// invalid inputs; solver failures and cancellation are reported on the
// result.
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, sc bioreactor.Scenario, cfg Config) (RunResult, error) {
	if err := s.validate(x0, []bioreactor.Scenario{sc}, cfg); err != nil {
		return RunResult{}, err
	}
	return s.runOne(ctx, 0, x0, sc, cfg.Grid(), cfg), nil
}

// Sweep integrates every scenario from the same initial state over the
// same grid. Inputs are checked before anything runs; after that the sweep
// always yields one result per scenario, in scenario order. A failing or
// cancelled scenario does not affect the others.
func (s *Simulator) Sweep(ctx context.Context, x0 dynamo.State, scenarios []bioreactor.Scenario, cfg Config) ([]RunResult, error) {
	if err := s.validate(x0, scenarios, cfg); err != nil {
		return nil, err
	}

	grid := cfg.Grid()
	results := make([]RunResult, len(scenarios))

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	s.log.WithFields(logrus.Fields{
		"scenarios": len(scenarios),
		"workers":   workers,
		"samples":   len(grid),
		"solver":    s.solver.Name(),
	}).Debug("starting sweep")

	var g errgroup.Group
	g.SetLimit(workers)
	for i, sc := range scenarios {
		g.Go(func() error {
			results[i] = s.runOne(ctx, i, x0, sc, grid, cfg)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (s *Simulator) validate(x0 dynamo.State, scenarios []bioreactor.Scenario, cfg Config) error {
	if s.model == nil {
		return dynamo.NewConfigError("model", nil, "simulator has no model")
	}
	if err := bioreactor.ValidateInitial(x0); err != nil {
		return err
	}
	if err := bioreactor.ValidateScenarios(scenarios); err != nil {
		return err
	}
	return cfg.Validate()
}

func (s *Simulator) runOne(ctx context.Context, idx int, x0 dynamo.State, sc bioreactor.Scenario, grid []float64, cfg Config) RunResult {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	solverCfg := cfg.Solver
	solverCfg.TEnd = cfg.TEnd

	start := time.Now()
	traj, stats, err := s.solver.Solve(ctx, s.model, x0.Clone(), sc.Control(), grid, solverCfg)

	res := RunResult{
		Index:      idx,
		Scenario:   sc,
		Trajectory: traj,
		Err:        err,
		Stats:      stats,
		Elapsed:    time.Since(start),
	}
	if res.Trajectory == nil {
		res.Trajectory = dynamo.NewTrajectory(0)
	}

	switch {
	case err == nil:
		res.Status = StatusSuccess
	case dynamo.IsCanceled(err):
		res.Status = StatusCancelled
	default:
		res.Status = StatusFailure
	}

	entry := s.log.WithFields(logrus.Fields{
		"scenario": sc.Label(),
		"status":   res.Status.String(),
		"steps":    stats.Steps,
		"rejected": stats.Rejected,
		"samples":  res.Trajectory.Len(),
	})
	var failure *dynamo.IntegrationFailure
	switch {
	case err == nil:
		entry.Debug("scenario finished")
	case errors.As(err, &failure):
		entry.WithField("t", failure.Time).Warnf("scenario stopped: %v", err)
	default:
		entry.Warnf("scenario stopped: %v", err)
	}

	for _, r := range s.recorders {
		r.Record(res)
	}
	return res
}
