package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/bioreact/internal/bioreactor"
	"github.com/san-kum/bioreact/internal/dynamo"
)

// Solver integrates a system over a sample grid.
type Solver interface {
	Name() string
	Solve(ctx context.Context, dyn dynamo.System, x0 dynamo.State, u dynamo.Control, tEval []float64, cfg dynamo.Config) (*dynamo.Trajectory, dynamo.Stats, error)
}

// Recorder observes every finished run.
type Recorder interface {
	Record(res RunResult)
}

type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "success":
		*s = StatusSuccess
	case "failure":
		*s = StatusFailure
	case "cancelled":
		*s = StatusCancelled
	default:
		return fmt.Errorf("unknown status %q", b)
	}
	return nil
}

// RunResult is the outcome of one scenario. Trajectory holds every sample
// reached, which is the full grid on success and a prefix otherwise.
type RunResult struct {
	Index      int
	Scenario   bioreactor.Scenario
	Trajectory *dynamo.Trajectory
	Status     Status
	Err        error
	Stats      dynamo.Stats
	Elapsed    time.Duration
}

func (r RunResult) OK() bool { return r.Status == StatusSuccess }

func (r RunResult) Samples() []bioreactor.Sample {
	if r.Trajectory == nil {
		return nil
	}
	return bioreactor.Samples(r.Trajectory)
}

// Config describes the horizon, the sample grid and the numerical policy
// shared by every scenario of a sweep.
type Config struct {
	T0     float64
	TEnd   float64
	Points int       // evenly spaced samples over [T0, TEnd], ends included
	Times  []float64 // explicit grid; overrides Points when set

	Solver  dynamo.Config
	Timeout time.Duration // per-scenario deadline; 0 disables
	Workers int           // concurrent scenarios; 0 means GOMAXPROCS
}

const (
	DefaultTEnd   = 30.0
	DefaultPoints = 301
)

func DefaultConfig() Config {
	return Config{
		TEnd:   DefaultTEnd,
		Points: DefaultPoints,
		Solver: dynamo.DefaultConfig(),
	}
}

// Grid returns the sample times.
func (c Config) Grid() []float64 {
	if len(c.Times) > 0 {
		out := make([]float64, len(c.Times))
		copy(out, c.Times)
		return out
	}
	if c.Points < 2 {
		return nil
	}
	grid := make([]float64, c.Points)
	span := c.TEnd - c.T0
	for i := range grid {
		grid[i] = c.T0 + span*float64(i)/float64(c.Points-1)
	}
	grid[0] = c.T0
	grid[len(grid)-1] = c.TEnd
	return grid
}

func (c Config) Validate() error {
	if math.IsNaN(c.T0) || math.IsInf(c.T0, 0) {
		return dynamo.NewConfigError("t0", c.T0, "must be finite")
	}
	if math.IsNaN(c.TEnd) || math.IsInf(c.TEnd, 0) || c.TEnd <= c.T0 {
		return dynamo.NewConfigError("t_end", c.TEnd, "must be finite and after t0")
	}

	if len(c.Times) > 0 {
		if c.Times[0] != c.T0 {
			return dynamo.NewConfigError("times", c.Times[0], "grid must start at t0")
		}
		for i := 1; i < len(c.Times); i++ {
			if !(c.Times[i] > c.Times[i-1]) {
				return dynamo.NewConfigError("times", c.Times[i], fmt.Sprintf("not strictly increasing at index %d", i))
			}
		}
		if last := c.Times[len(c.Times)-1]; last > c.TEnd {
			return dynamo.NewConfigError("times", last, "sample time beyond t_end")
		}
	} else if c.Points < 2 {
		return dynamo.NewConfigError("points", c.Points, "need at least 2 samples")
	}

	if err := c.Solver.Validate(); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return dynamo.NewConfigError("timeout", c.Timeout, "must not be negative")
	}
	if c.Workers < 0 {
		return dynamo.NewConfigError("workers", c.Workers, "must not be negative")
	}
	return nil
}
