package bioreactor

import (
	"fmt"
	"math"

	"github.com/san-kum/bioreact/internal/dynamo"
)

// Scenario is one feeding policy: a constant inlet flow F (L/hr) carrying
// substrate at concentration Sf (g/L).
type Scenario struct {
	Name string  `yaml:"name,omitempty" json:"name,omitempty"`
	F    float64 `yaml:"f" json:"f"`
	Sf   float64 `yaml:"sf" json:"sf"`
}

func (s Scenario) Validate() error {
	if math.IsNaN(s.F) || math.IsInf(s.F, 0) || s.F < 0 {
		return dynamo.NewConfigError("f", s.F, "feed flow must be a non-negative finite number")
	}
	if math.IsNaN(s.Sf) || math.IsInf(s.Sf, 0) || s.Sf < 0 {
		return dynamo.NewConfigError("sf", s.Sf, "feed concentration must be a non-negative finite number")
	}
	return nil
}

// Control packs the scenario as the model's control vector {F, Sf}.
func (s Scenario) Control() dynamo.Control {
	return dynamo.Control{s.F, s.Sf}
}

// Label is the scenario name, or a description of its feed when unnamed.
func (s Scenario) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("F=%g Sf=%g", s.F, s.Sf)
}

// ValidateScenarios rejects an empty list and reports the index of the
// first invalid entry.
func ValidateScenarios(scenarios []Scenario) error {
	if len(scenarios) == 0 {
		return dynamo.NewConfigError("scenarios", nil, "at least one scenario is required")
	}
	for i, s := range scenarios {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("scenario %d: %w", i, err)
		}
	}
	return nil
}
