package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds settings read from the process environment. Explicit flags
// take precedence over these, and these over experiment files.
type Env struct {
	DataDir  string  `env:"BIOREACT_DATA" envDefault:".bioreact"`
	LogLevel string  `env:"BIOREACT_LOG_LEVEL" envDefault:"info"`
	Workers  int     `env:"BIOREACT_WORKERS"`
	RelTol   float64 `env:"BIOREACT_RTOL"`
	AbsTol   float64 `env:"BIOREACT_ATOL"`
}

// ParseEnv loads Env from environment variables.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return e, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// Apply copies the numerical overrides that are set onto cfg.
func (e Env) Apply(cfg *Config) {
	if e.Workers != 0 {
		cfg.Workers = e.Workers
	}
	if e.RelTol != 0 {
		cfg.Solver.RelTol = e.RelTol
	}
	if e.AbsTol != 0 {
		cfg.Solver.AbsTol = e.AbsTol
	}
}
