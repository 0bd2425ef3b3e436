package bioreactor

import (
	"math"

	"github.com/san-kum/bioreact/internal/dynamo"
)

// Parameters are the kinetic and stoichiometric constants of the culture.
// They do not change between scenarios.
type Parameters struct {
	MuMax float64 // maximum specific growth rate, 1/hr
	Ks    float64 // Monod half-saturation constant, g/L
	Yxs   float64 // biomass yield on substrate, g/g
	Ypx   float64 // product formed per unit biomass grown, g/g
}

func DefaultParameters() Parameters {
	return Parameters{
		MuMax: 0.2,
		Ks:    1.0,
		Yxs:   0.5,
		Ypx:   0.2,
	}
}

// Validate requires every constant to be strictly positive and finite.
func (p Parameters) Validate() error {
	checks := []struct {
		field string
		value float64
	}{
		{"mumax", p.MuMax},
		{"ks", p.Ks},
		{"yxs", p.Yxs},
		{"ypx", p.Ypx},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) || c.value <= 0 {
			return dynamo.NewConfigError(c.field, c.value, "must be a positive finite number")
		}
	}
	return nil
}
