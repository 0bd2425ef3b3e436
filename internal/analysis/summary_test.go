package analysis

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/bioreact/internal/bioreactor"
	"github.com/san-kum/bioreact/internal/dynamo"
	"github.com/san-kum/bioreact/internal/integrators"
)

func handTrajectory() *dynamo.Trajectory {
	tr := dynamo.NewTrajectory(3)
	tr.Append(0, bioreactor.NewState(1, 10, 0, 1))
	tr.Append(5, bioreactor.NewState(3.5, 6, 0.3, 1.5))
	tr.Append(10, bioreactor.NewState(3, 4, 0.5, 2))
	return tr
}

func TestSummarize_HandComputed(t *testing.T) {
	sc := bioreactor.Scenario{F: 0.1, Sf: 10}
	p := bioreactor.DefaultParameters()

	s := Summarize(handTrajectory(), sc, p)

	assert.Equal(t, 3, s.Samples)
	assert.InDelta(t, 10.0, s.Duration, 1e-12)
	assert.InDelta(t, 3.0, s.FinalX, 1e-12)
	assert.InDelta(t, 2.0, s.FinalV, 1e-12)
	assert.InDelta(t, 3.5, s.PeakX, 1e-12)
	assert.InDelta(t, 5.0, s.PeakXTime, 1e-12)
	assert.InDelta(t, 4.0, s.MinS, 1e-12)

	// X*V - X0*V0 = 6 - 1
	assert.InDelta(t, 5.0, s.BiomassFormed, 1e-12)
	assert.InDelta(t, 1.0, s.ProductFormed, 1e-12)
	assert.InDelta(t, 10.0, s.SubstrateFed, 1e-12)
	// 10 + 10 - 8
	assert.InDelta(t, 12.0, s.SubstrateConsumed, 1e-12)
	assert.InDelta(t, 5.0/12.0, s.ObservedYield, 1e-12)
	assert.InDelta(t, 0.1, s.Productivity, 1e-12)
	// |12 - 5/0.5| / 20
	assert.InDelta(t, 0.1, s.BalanceError, 1e-12)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(dynamo.NewTrajectory(0), bioreactor.Scenario{}, bioreactor.DefaultParameters())
	assert.Equal(t, Summary{}, s)
}

func TestSummarize_SolvedTrajectoryBalances(t *testing.T) {
	model, err := bioreactor.NewModel(bioreactor.DefaultParameters())
	require.NoError(t, err)

	grid := make([]float64, 61)
	for i := range grid {
		grid[i] = 0.5 * float64(i)
	}
	cfg := dynamo.DefaultConfig()
	cfg.RelTol, cfg.AbsTol = 1e-8, 1e-10

	for _, sc := range []bioreactor.Scenario{{F: 0.05, Sf: 10}, {F: 0.02, Sf: 10}, {F: 0, Sf: 10}} {
		tr, _, err := integrators.NewRK45().Solve(context.Background(), model,
			bioreactor.NewState(0.05, 10, 0, 1), sc.Control(), grid, cfg)
		require.NoError(t, err)

		s := Summarize(tr, sc, model.Params())
		assert.Less(t, s.BalanceError, 1e-5, "F=%g", sc.F)
		assert.InDelta(t, 0.5, s.ObservedYield, 1e-4, "F=%g", sc.F)
		assert.Less(t, VolumeDeviation(tr, sc), 1e-9, "F=%g", sc.F)
		assert.True(t, IsMonotonic(tr, bioreactor.IdxX, 1), "F=%g", sc.F)
		// Ypx links product to biomass.
		assert.InDelta(t, 0.2*s.BiomassFormed, s.ProductFormed, 1e-5, "F=%g", sc.F)
	}
}

func TestVolumeDeviation(t *testing.T) {
	tr := handTrajectory()
	assert.InDelta(t, 0.0, VolumeDeviation(tr, bioreactor.Scenario{F: 0.1}), 1e-12)
	assert.InDelta(t, 1.0, VolumeDeviation(tr, bioreactor.Scenario{F: 0}), 1e-12)
	assert.Zero(t, VolumeDeviation(dynamo.NewTrajectory(0), bioreactor.Scenario{F: 1}))
}

func TestIsMonotonic(t *testing.T) {
	tr := handTrajectory()
	assert.False(t, IsMonotonic(tr, bioreactor.IdxX, 1))
	assert.True(t, IsMonotonic(tr, bioreactor.IdxX, 0.6))
	assert.True(t, IsMonotonic(tr, bioreactor.IdxV, 1))
	assert.False(t, IsMonotonic(tr, bioreactor.IdxS, 1))
}

func TestPhasePortrait(t *testing.T) {
	tr := handTrajectory()

	pp := NewPhasePortrait(tr, bioreactor.IdxS, bioreactor.IdxX)
	require.NotNil(t, pp)
	require.Len(t, pp.Points, 3)
	assert.Equal(t, 10.0, pp.Points[0].X)
	assert.Equal(t, 1.0, pp.Points[0].Y)

	art := PhasePortraitToASCII(pp, 20, 8)
	assert.Equal(t, 8, strings.Count(art, "\n"))
	assert.Equal(t, 3, strings.Count(art, "•"))

	assert.Nil(t, NewPhasePortrait(tr, 0, 9))
	assert.Nil(t, NewPhasePortrait(dynamo.NewTrajectory(0), 0, 1))
	assert.Empty(t, PhasePortraitToASCII(nil, 20, 8))
}

func TestSummarize_NaNFree(t *testing.T) {
	tr := dynamo.NewTrajectory(1)
	tr.Append(0, bioreactor.NewState(0, 0, 0, 1))
	s := Summarize(tr, bioreactor.Scenario{}, bioreactor.DefaultParameters())
	for _, v := range []float64{s.ObservedYield, s.Productivity, s.BalanceError} {
		assert.False(t, math.IsNaN(v))
	}
}
