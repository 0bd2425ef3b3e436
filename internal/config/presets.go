package config

import (
	"sort"

	"github.com/san-kum/bioreact/internal/bioreactor"
)

var Presets = map[string]func() *Config{
	"standard": DefaultConfig,
	"batch": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "batch"
		cfg.Scenarios = []bioreactor.Scenario{{Name: "batch", F: 0, Sf: 0}}
		return cfg
	},
	"feed-sweep": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "feed-sweep"
		cfg.Horizon.TEnd = 40
		cfg.Horizon.Points = 401
		cfg.Scenarios = []bioreactor.Scenario{
			{Name: "F=0", F: 0, Sf: DefaultSf},
			{Name: "F=0.01", F: 0.01, Sf: DefaultSf},
			{Name: "F=0.02", F: 0.02, Sf: DefaultSf},
			{Name: "F=0.05", F: 0.05, Sf: DefaultSf},
			{Name: "F=0.1", F: 0.1, Sf: DefaultSf},
		}
		return cfg
	},
	"dilute-feed": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "dilute-feed"
		cfg.Scenarios = []bioreactor.Scenario{
			{Name: "Sf=2", F: 0.05, Sf: 2},
			{Name: "Sf=5", F: 0.05, Sf: 5},
			{Name: "Sf=10", F: 0.05, Sf: 10},
		}
		return cfg
	},
	"rich-feed": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "rich-feed"
		cfg.Horizon.TEnd = 48
		cfg.Horizon.Points = 481
		cfg.Scenarios = []bioreactor.Scenario{
			{Name: "Sf=50", F: 0.02, Sf: 50},
			{Name: "Sf=100", F: 0.02, Sf: 100},
		}
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
