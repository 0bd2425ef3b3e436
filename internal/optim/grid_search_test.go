package optim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/san-kum/bioreact/internal/bioreactor"
	"github.com/san-kum/bioreact/internal/integrators"
	"github.com/san-kum/bioreact/internal/sim"
)

func testSimulator(t *testing.T) *sim.Simulator {
	t.Helper()
	model, err := bioreactor.NewModel(bioreactor.DefaultParameters())
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	log, _ := test.NewNullLogger()
	return sim.New(model, integrators.NewRK45(), log)
}

func TestRange(t *testing.T) {
	got := Range(0, 0.1, 5)
	want := []float64{0, 0.025, 0.05, 0.075, 0.1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-15 {
			t.Fatalf("Range = %v, want %v", got, want)
		}
	}
	if got := Range(3, 7, 1); len(got) != 1 || got[0] != 3 {
		t.Errorf("single point range = %v", got)
	}
}

func TestScenarios(t *testing.T) {
	g := NewGridSearch([]float64{0.01, 0.02}, []float64{5, 10, 20})
	scs := g.Scenarios()
	if len(scs) != 6 {
		t.Fatalf("expected 6 scenarios, got %d", len(scs))
	}
	if scs[1].F != 0.01 || scs[1].Sf != 10 {
		t.Errorf("expected concentration to vary fastest, got %+v", scs[1])
	}
}

func TestSearchRanksByObjective(t *testing.T) {
	s := testSimulator(t)
	x0 := bioreactor.NewState(0.05, 10, 0, 1)
	g := NewGridSearch([]float64{0, 0.02, 0.05}, []float64{10})

	tests := []struct {
		objective string
		bestF     float64
	}{
		// more feed means more total substrate and so more cells overall
		{"biomass", 0.05},
		// without dilution the concentration ends highest
		{"final_x", 0},
	}

	for _, tt := range tests {
		t.Run(tt.objective, func(t *testing.T) {
			candidates, err := g.Search(context.Background(), s, x0, sim.DefaultConfig(), tt.objective)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(candidates) != 3 {
				t.Fatalf("expected 3 candidates, got %d", len(candidates))
			}
			if got := candidates[0].Result.Scenario.F; got != tt.bestF {
				t.Errorf("best F = %v, want %v", got, tt.bestF)
			}
			for i := 1; i < len(candidates); i++ {
				if candidates[i].Score > candidates[i-1].Score {
					t.Errorf("candidates not sorted at %d", i)
				}
			}
		})
	}
}

func TestSearchUnknownObjective(t *testing.T) {
	g := NewGridSearch([]float64{0.05}, []float64{10})
	_, err := g.Search(context.Background(), testSimulator(t), bioreactor.NewState(0.05, 10, 0, 1), sim.DefaultConfig(), "profit")
	if !errors.Is(err, ErrUnknownObjective) {
		t.Errorf("expected ErrUnknownObjective, got %v", err)
	}
}

func TestSearchNoCandidate(t *testing.T) {
	g := NewGridSearch([]float64{0.05}, []float64{10})
	cfg := sim.DefaultConfig()
	cfg.Solver.MaxSteps = 2

	candidates, err := g.Search(context.Background(), testSimulator(t), bioreactor.NewState(0.05, 10, 0, 1), cfg, "biomass")
	if !errors.Is(err, ErrNoCandidate) {
		t.Fatalf("expected ErrNoCandidate, got %v", err)
	}
	if len(candidates) != 1 || !math.IsInf(candidates[0].Score, -1) {
		t.Errorf("failed scenario should be kept with -Inf score, got %+v", candidates)
	}
}
