package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/bioreact/internal/bioreactor"
	"github.com/san-kum/bioreact/internal/dynamo"
)

// Summary describes one trajectory. Amounts are in g, concentrations in
// g/L and rates in g/hr.
type Summary struct {
	Samples  int     `json:"samples"`
	Duration float64 `json:"duration"`

	FinalX float64 `json:"final_x"`
	FinalS float64 `json:"final_s"`
	FinalP float64 `json:"final_p"`
	FinalV float64 `json:"final_v"`

	PeakX     float64 `json:"peak_x"`
	PeakXTime float64 `json:"peak_x_time"`
	MinS      float64 `json:"min_s"`

	BiomassFormed     float64 `json:"biomass_formed"`
	ProductFormed     float64 `json:"product_formed"`
	SubstrateFed      float64 `json:"substrate_fed"`
	SubstrateConsumed float64 `json:"substrate_consumed"`

	// ObservedYield is biomass formed per substrate consumed.
	ObservedYield float64 `json:"observed_yield"`
	// Productivity is product formed per hour of culture.
	Productivity float64 `json:"productivity"`
	// BalanceError is |consumed - formed/Yxs| relative to the substrate
	// supplied (initial plus fed).
	BalanceError float64 `json:"balance_error"`
}

// Summarize evaluates a trajectory produced for sc under p. The first
// sample is taken as the initial state.
func Summarize(tr *dynamo.Trajectory, sc bioreactor.Scenario, p bioreactor.Parameters) Summary {
	var s Summary
	n := tr.Len()
	if n == 0 {
		return s
	}

	t0, x0 := tr.Times[0], tr.States[0]
	tEnd, xEnd, _ := tr.Last()

	xs := tr.Column(bioreactor.IdxX)
	ss := tr.Column(bioreactor.IdxS)
	peak := floats.MaxIdx(xs)

	s.Samples = n
	s.Duration = tEnd - t0
	s.FinalX = xEnd[bioreactor.IdxX]
	s.FinalS = xEnd[bioreactor.IdxS]
	s.FinalP = xEnd[bioreactor.IdxP]
	s.FinalV = xEnd[bioreactor.IdxV]
	s.PeakX = xs[peak]
	s.PeakXTime = tr.Times[peak]
	s.MinS = floats.Min(ss)

	v0, vEnd := x0[bioreactor.IdxV], xEnd[bioreactor.IdxV]
	s.BiomassFormed = s.FinalX*vEnd - x0[bioreactor.IdxX]*v0
	s.ProductFormed = s.FinalP*vEnd - x0[bioreactor.IdxP]*v0
	s.SubstrateFed = sc.F * sc.Sf * s.Duration
	s.SubstrateConsumed = x0[bioreactor.IdxS]*v0 + s.SubstrateFed - s.FinalS*vEnd

	if s.SubstrateConsumed > 0 {
		s.ObservedYield = s.BiomassFormed / s.SubstrateConsumed
	}
	if s.Duration > 0 {
		s.Productivity = s.ProductFormed / s.Duration
	}

	supplied := x0[bioreactor.IdxS]*v0 + s.SubstrateFed
	imbalance := math.Abs(s.SubstrateConsumed - s.BiomassFormed/p.Yxs)
	if supplied > 0 {
		s.BalanceError = imbalance / supplied
	} else {
		s.BalanceError = imbalance
	}
	return s
}

// VolumeDeviation is the largest |V(t) - (V0 + F*(t-t0))| over the
// trajectory.
func VolumeDeviation(tr *dynamo.Trajectory, sc bioreactor.Scenario) float64 {
	if tr.Len() == 0 {
		return 0
	}
	t0, v0 := tr.Times[0], tr.States[0][bioreactor.IdxV]
	dev := make([]float64, tr.Len())
	for i, t := range tr.Times {
		dev[i] = math.Abs(tr.States[i][bioreactor.IdxV] - (v0 + sc.F*(t-t0)))
	}
	return floats.Max(dev)
}

// IsMonotonic reports whether component idx never decreases over the
// first fraction of the samples (0 < fraction <= 1).
func IsMonotonic(tr *dynamo.Trajectory, idx int, fraction float64) bool {
	col := tr.Column(idx)
	end := int(math.Ceil(float64(len(col)) * fraction))
	if end > len(col) {
		end = len(col)
	}
	for i := 1; i < end; i++ {
		if col[i] < col[i-1] {
			return false
		}
	}
	return true
}
