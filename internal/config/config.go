package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/bioreact/internal/bioreactor"
	"github.com/san-kum/bioreact/internal/dynamo"
	"github.com/san-kum/bioreact/internal/sim"
)

const (
	DefaultTEnd   = sim.DefaultTEnd
	DefaultPoints = sim.DefaultPoints
	DefaultMethod = "dopri5"
	DefaultX      = 0.05
	DefaultS      = 10.0
	DefaultV      = 1.0
	DefaultSf     = 10.0
)

// Config is one experiment: the culture, its starting point, the horizon
// and the feed scenarios to compare.
type Config struct {
	Name       string                `yaml:"name,omitempty"`
	Parameters ParamsConfig          `yaml:"parameters"`
	InitState  InitStateConfig       `yaml:"init_state"`
	Horizon    HorizonConfig         `yaml:"horizon"`
	Solver     SolverConfig          `yaml:"solver"`
	Scenarios  []bioreactor.Scenario `yaml:"scenarios"`
	Workers    int                   `yaml:"workers,omitempty"`
	Timeout    time.Duration         `yaml:"timeout,omitempty"`
}

type ParamsConfig struct {
	MuMax float64 `yaml:"mumax"`
	Ks    float64 `yaml:"ks"`
	Yxs   float64 `yaml:"yxs"`
	Ypx   float64 `yaml:"ypx"`
}

type InitStateConfig struct {
	X float64 `yaml:"x"`
	S float64 `yaml:"s"`
	P float64 `yaml:"p"`
	V float64 `yaml:"v"`
}

type HorizonConfig struct {
	T0     float64   `yaml:"t0"`
	TEnd   float64   `yaml:"t_end"`
	Points int       `yaml:"points,omitempty"`
	Times  []float64 `yaml:"times,omitempty"`
}

type SolverConfig struct {
	Method    string  `yaml:"method"`
	RelTol    float64 `yaml:"rtol,omitempty"`
	AbsTol    float64 `yaml:"atol,omitempty"`
	MaxStep   float64 `yaml:"max_step,omitempty"`
	FirstStep float64 `yaml:"first_step,omitempty"`
	MaxSteps  int     `yaml:"max_steps,omitempty"`
}

func DefaultConfig() *Config {
	p := bioreactor.DefaultParameters()
	return &Config{
		Name: "standard",
		Parameters: ParamsConfig{
			MuMax: p.MuMax,
			Ks:    p.Ks,
			Yxs:   p.Yxs,
			Ypx:   p.Ypx,
		},
		InitState: InitStateConfig{
			X: DefaultX,
			S: DefaultS,
			V: DefaultV,
		},
		Horizon: HorizonConfig{
			TEnd:   DefaultTEnd,
			Points: DefaultPoints,
		},
		Solver: SolverConfig{
			Method:   DefaultMethod,
			RelTol:   dynamo.DefaultRelTol,
			AbsTol:   dynamo.DefaultAbsTol,
			MaxSteps: dynamo.DefaultMaxSteps,
		},
		Scenarios: []bioreactor.Scenario{
			{Name: "F=0.05", F: 0.05, Sf: DefaultSf},
			{Name: "F=0.02", F: 0.02, Sf: DefaultSf},
		},
	}
}

// Load reads a YAML experiment on top of the defaults. Unknown keys are
// rejected so that typos do not silently fall back to defaults.
func Load(path string) (*Config, error) {
	return LoadOnto(path, DefaultConfig())
}

// LoadOnto reads a YAML experiment on top of base, which is modified in
// place and returned. Keys missing from the file keep base's values; a
// scenarios list in the file replaces base's list.
func LoadOnto(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ParseInto(base, data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return base, nil
}

func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := ParseInto(cfg, data); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseInto decodes data over the fields of base.
func ParseInto(base *Config, data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(base); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode experiment: %w", err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Params() bioreactor.Parameters {
	return bioreactor.Parameters{
		MuMax: c.Parameters.MuMax,
		Ks:    c.Parameters.Ks,
		Yxs:   c.Parameters.Yxs,
		Ypx:   c.Parameters.Ypx,
	}
}

func (c *Config) GetInitState() dynamo.State {
	return bioreactor.NewState(c.InitState.X, c.InitState.S, c.InitState.P, c.InitState.V)
}

// SimConfig converts the horizon and solver sections.
func (c *Config) SimConfig() sim.Config {
	return sim.Config{
		T0:     c.Horizon.T0,
		TEnd:   c.Horizon.TEnd,
		Points: c.Horizon.Points,
		Times:  c.Horizon.Times,
		Solver: dynamo.Config{
			RelTol:      c.Solver.RelTol,
			AbsTol:      c.Solver.AbsTol,
			MaxStep:     c.Solver.MaxStep,
			InitialStep: c.Solver.FirstStep,
			MaxSteps:    c.Solver.MaxSteps,
		},
		Timeout: c.Timeout,
		Workers: c.Workers,
	}
}

// Validate checks the whole experiment up front.
func (c *Config) Validate() error {
	switch c.Solver.Method {
	case "", "dopri5", "rk45":
	default:
		return dynamo.NewConfigError("solver.method", c.Solver.Method, "supported methods are dopri5 and rk45")
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("parameters: %w", err)
	}
	if err := bioreactor.ValidateInitial(c.GetInitState()); err != nil {
		return err
	}
	if err := bioreactor.ValidateScenarios(c.Scenarios); err != nil {
		return err
	}
	return c.SimConfig().Validate()
}
