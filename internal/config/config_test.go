package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/bioreact/internal/bioreactor"
	"github.com/san-kum/bioreact/internal/dynamo"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if len(cfg.Scenarios) != 2 {
		t.Errorf("expected 2 scenarios, got %d", len(cfg.Scenarios))
	}
	if cfg.Horizon.TEnd != 30 {
		t.Errorf("expected horizon 30, got %f", cfg.Horizon.TEnd)
	}
	if cfg.Solver.Method != "dopri5" {
		t.Errorf("expected dopri5, got %s", cfg.Solver.Method)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("batch")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if len(cfg.Scenarios) != 1 || cfg.Scenarios[0].F != 0 {
		t.Errorf("batch preset should have a single closed scenario, got %+v", cfg.Scenarios)
	}

	cfg.Scenarios[0].F = 1
	if again := GetPreset("batch"); again.Scenarios[0].F != 0 {
		t.Error("presets share state between calls")
	}

	for _, name := range ListPresets() {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s invalid: %v", name, err)
		}
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets()
	if len(presets) != len(Presets) {
		t.Errorf("expected %d presets, got %d", len(Presets), len(presets))
	}
	for i := 1; i < len(presets); i++ {
		if presets[i-1] > presets[i] {
			t.Errorf("presets not sorted: %v", presets)
		}
	}
}

func TestGetInitState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitState.P = 0.3

	state := cfg.GetInitState()
	want := bioreactor.NewState(0.05, 10, 0.3, 1)
	for i := range want {
		if state[i] != want[i] {
			t.Errorf("component %d: got %v, want %v", i, state[i], want[i])
		}
	}
}

func TestParse(t *testing.T) {
	doc := []byte(`
name: custom
parameters:
  mumax: 0.4
  ks: 0.5
  yxs: 0.45
  ypx: 0.1
horizon:
  t0: 0
  t_end: 12
  times: [0, 3, 6, 12]
solver:
  method: rk45
  rtol: 1.0e-6
timeout: 2s
scenarios:
  - name: only
    f: 0.1
    sf: 20
`)

	cfg, err := Parse(doc)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("parsed config invalid: %v", err)
	}

	if cfg.Params().MuMax != 0.4 || cfg.Params().Ks != 0.5 {
		t.Errorf("parameters not applied: %+v", cfg.Params())
	}
	if cfg.InitState.S != DefaultS {
		t.Errorf("unset initial state should keep defaults, got %+v", cfg.InitState)
	}
	if len(cfg.Scenarios) != 1 || cfg.Scenarios[0].Sf != 20 {
		t.Errorf("scenarios not replaced: %+v", cfg.Scenarios)
	}

	sc := cfg.SimConfig()
	if len(sc.Grid()) != 4 || sc.TEnd != 12 {
		t.Errorf("horizon not applied: %+v", sc)
	}
	if sc.Solver.RelTol != 1e-6 || sc.Solver.AbsTol != dynamo.DefaultAbsTol {
		t.Errorf("solver tolerances wrong: %+v", sc.Solver)
	}
	if sc.Timeout != 2*time.Second {
		t.Errorf("timeout = %v, want 2s", sc.Timeout)
	}
}

func TestParse_UnknownField(t *testing.T) {
	if _, err := Parse([]byte("parameters:\n  mu_max: 0.3\n")); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	cfg := GetPreset("dilute-feed")
	cfg.Timeout = time.Minute

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if loaded.Name != "dilute-feed" || len(loaded.Scenarios) != 3 {
		t.Errorf("loaded %+v", loaded)
	}
	if loaded.Timeout != time.Minute {
		t.Errorf("timeout = %v, want 1m", loaded.Timeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero volume", func(c *Config) { c.InitState.V = 0 }},
		{"zero ks", func(c *Config) { c.Parameters.Ks = 0 }},
		{"negative mumax", func(c *Config) { c.Parameters.MuMax = -0.2 }},
		{"unknown method", func(c *Config) { c.Solver.Method = "euler" }},
		{"no scenarios", func(c *Config) { c.Scenarios = nil }},
		{"negative feed", func(c *Config) { c.Scenarios[0].F = -1 }},
		{"reversed horizon", func(c *Config) { c.Horizon.TEnd = -5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, dynamo.ErrInvalidConfig) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestEnv(t *testing.T) {
	t.Setenv("BIOREACT_DATA", "/tmp/runs")
	t.Setenv("BIOREACT_WORKERS", "3")
	t.Setenv("BIOREACT_RTOL", "1e-7")

	e, err := ParseEnv()
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if e.DataDir != "/tmp/runs" || e.LogLevel != "info" {
		t.Errorf("unexpected env: %+v", e)
	}

	cfg := DefaultConfig()
	e.Apply(cfg)
	if cfg.Workers != 3 || cfg.Solver.RelTol != 1e-7 {
		t.Errorf("env overrides not applied: workers=%d rtol=%g", cfg.Workers, cfg.Solver.RelTol)
	}
	if cfg.Solver.AbsTol != dynamo.DefaultAbsTol {
		t.Errorf("unset override changed atol to %g", cfg.Solver.AbsTol)
	}
}

func TestEnv_Invalid(t *testing.T) {
	t.Setenv("BIOREACT_WORKERS", "many")
	if _, err := ParseEnv(); err == nil {
		t.Error("expected error for non-numeric workers")
	}
}

func TestLoadOnto_KeepsBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.yaml")
	if err := os.WriteFile(path, []byte("horizon:\n  t_end: 12\n  points: 13\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadOnto(path, GetPreset("feed-sweep"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Name != "feed-sweep" || len(cfg.Scenarios) != 5 {
		t.Errorf("preset not kept: name=%s scenarios=%d", cfg.Name, len(cfg.Scenarios))
	}
	if cfg.Horizon.TEnd != 12 || cfg.Horizon.Points != 13 {
		t.Errorf("file horizon not applied: %+v", cfg.Horizon)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("layered config invalid: %v", err)
	}
}

func TestParseInto_Empty(t *testing.T) {
	cfg := GetPreset("batch")
	if err := ParseInto(cfg, nil); err != nil {
		t.Fatalf("empty document: %v", err)
	}
	if cfg.Name != "batch" {
		t.Errorf("empty document changed the base: %+v", cfg)
	}
	if err := ParseInto(cfg, []byte("solver:\n  rtl: 1\n")); err == nil {
		t.Error("expected error for unknown key")
	}
}
