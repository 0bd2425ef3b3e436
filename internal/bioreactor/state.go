package bioreactor

import (
	"math"
	"strings"

	"github.com/san-kum/bioreact/internal/dynamo"
)

// State vector layout.
const (
	IdxX = iota
	IdxS
	IdxP
	IdxV

	stateDim
)

const (
	ConcentrationUnit = "g/L"
	VolumeUnit        = "L"
	TimeUnit          = "hr"
)

// Variable describes one component of the state vector for consumers.
type Variable struct {
	Index  int
	Symbol string
	Name   string
	Unit   string
}

var variables = []Variable{
	{IdxX, "X", "cells", ConcentrationUnit},
	{IdxS, "S", "substrate", ConcentrationUnit},
	{IdxP, "P", "product", ConcentrationUnit},
	{IdxV, "V", "volume", VolumeUnit},
}

// Variables lists the state components in vector order.
func Variables() []Variable {
	out := make([]Variable, len(variables))
	copy(out, variables)
	return out
}

func NewState(x, s, p, v float64) dynamo.State {
	return dynamo.State{x, s, p, v}
}

// ValidateInitial requires non-negative concentrations and a strictly
// positive volume, since every balance divides by V.
func ValidateInitial(x0 dynamo.State) error {
	if len(x0) != stateDim {
		return dynamo.NewConfigError("initial", len(x0), "state must have 4 components (x, s, p, v)")
	}
	for _, v := range variables {
		val := x0[v.Index]
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return dynamo.NewConfigError("initial."+strings.ToLower(v.Symbol), val, "must be finite")
		}
		if val < 0 {
			return dynamo.NewConfigError("initial."+strings.ToLower(v.Symbol), val, "must not be negative")
		}
	}
	if x0[IdxV] == 0 {
		return dynamo.NewConfigError("initial.v", x0[IdxV], "volume must be positive")
	}
	return nil
}

// Sample is one (time, X, S, P, V) row of a trajectory.
type Sample struct {
	T float64 `json:"t"`
	X float64 `json:"x"`
	S float64 `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
}

// Samples flattens a trajectory into rows.
func Samples(tr *dynamo.Trajectory) []Sample {
	out := make([]Sample, tr.Len())
	for i := range out {
		x := tr.States[i]
		out[i] = Sample{T: tr.Times[i], X: x[IdxX], S: x[IdxS], P: x[IdxP], V: x[IdxV]}
	}
	return out
}
