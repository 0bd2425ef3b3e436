package dynamo

import (
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Control carries the inputs a System reads alongside its state. It is
// constant for the duration of one integration.
type Control []float64

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Config holds the numerical policy for one adaptive solve.
type Config struct {
	TEnd        float64
	RelTol      float64
	AbsTol      float64
	MaxStep     float64 // 0 means unbounded
	InitialStep float64 // 0 means estimate from the derivative
	MaxSteps    int     // accepted plus rejected steps; 0 means DefaultMaxSteps
}

const (
	DefaultRelTol   = 1e-3
	DefaultAbsTol   = 1e-6
	DefaultMaxSteps = 100000
)

func DefaultConfig() Config {
	return Config{
		RelTol:   DefaultRelTol,
		AbsTol:   DefaultAbsTol,
		MaxSteps: DefaultMaxSteps,
	}
}

// WithDefaults fills zero tolerances and limits with the solver defaults.
func (c Config) WithDefaults() Config {
	if c.RelTol == 0 {
		c.RelTol = DefaultRelTol
	}
	if c.AbsTol == 0 {
		c.AbsTol = DefaultAbsTol
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.MaxStep == 0 {
		c.MaxStep = math.Inf(1)
	}
	return c
}

// Validate rejects negative or non-finite tolerances and limits.
func (c Config) Validate() error {
	if math.IsNaN(c.RelTol) || c.RelTol < 0 {
		return NewConfigError("rtol", c.RelTol, "must be a non-negative number")
	}
	if math.IsNaN(c.AbsTol) || c.AbsTol < 0 {
		return NewConfigError("atol", c.AbsTol, "must be a non-negative number")
	}
	if math.IsNaN(c.MaxStep) || c.MaxStep < 0 {
		return NewConfigError("max_step", c.MaxStep, "must be a non-negative number")
	}
	if math.IsNaN(c.InitialStep) || math.IsInf(c.InitialStep, 0) || c.InitialStep < 0 {
		return NewConfigError("first_step", c.InitialStep, "must be a finite non-negative number")
	}
	if c.MaxSteps < 0 {
		return NewConfigError("max_steps", c.MaxSteps, "must not be negative")
	}
	return nil
}

// Stats counts the work done by one solve.
type Stats struct {
	Steps       int
	Rejected    int
	Evaluations int
	LastStep    float64
}

// Trajectory is an ordered sequence of (time, state) samples.
type Trajectory struct {
	Times  []float64
	States []State
}

func NewTrajectory(capacity int) *Trajectory {
	return &Trajectory{
		Times:  make([]float64, 0, capacity),
		States: make([]State, 0, capacity),
	}
}

// Append records a sample. The state is stored as given; callers hand over
// ownership.
func (tr *Trajectory) Append(t float64, x State) {
	tr.Times = append(tr.Times, t)
	tr.States = append(tr.States, x)
}

func (tr *Trajectory) Len() int {
	if tr == nil {
		return 0
	}
	return len(tr.Times)
}

// Last returns the final sample, or false for an empty trajectory.
func (tr *Trajectory) Last() (float64, State, bool) {
	n := tr.Len()
	if n == 0 {
		return 0, nil, false
	}
	return tr.Times[n-1], tr.States[n-1], true
}

// Column extracts component i of every sample.
func (tr *Trajectory) Column(i int) []float64 {
	col := make([]float64, tr.Len())
	for k := range col {
		if i < len(tr.States[k]) {
			col[k] = tr.States[k][i]
		}
	}
	return col
}
