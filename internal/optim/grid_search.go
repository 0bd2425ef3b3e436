// Package optim searches feeding policies for the best culture outcome.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/bioreact/internal/analysis"
	"github.com/san-kum/bioreact/internal/bioreactor"
	"github.com/san-kum/bioreact/internal/dynamo"
	"github.com/san-kum/bioreact/internal/sim"
)

var (
	ErrUnknownObjective = errors.New("optim: unknown objective")
	ErrNoCandidate      = errors.New("optim: no scenario completed")
)

// Objectives maps objective names to the summary figure they maximize.
var Objectives = map[string]func(analysis.Summary) float64{
	"final_x":      func(s analysis.Summary) float64 { return s.FinalX },
	"final_p":      func(s analysis.Summary) float64 { return s.FinalP },
	"biomass":      func(s analysis.Summary) float64 { return s.BiomassFormed },
	"product":      func(s analysis.Summary) float64 { return s.ProductFormed },
	"productivity": func(s analysis.Summary) float64 { return s.Productivity },
	"yield":        func(s analysis.Summary) float64 { return s.ObservedYield },
}

func ListObjectives() []string {
	names := make([]string, 0, len(Objectives))
	for name := range Objectives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GridSearch evaluates every combination of feed flow and feed
// concentration.
type GridSearch struct {
	feeds []float64
	concs []float64
}

func NewGridSearch(feeds, concs []float64) *GridSearch {
	return &GridSearch{feeds: feeds, concs: concs}
}

// Range returns n evenly spaced values over [lo, hi].
func Range(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	out[n-1] = hi
	return out
}

// Scenarios lists the grid points, feed concentration varying fastest.
func (g *GridSearch) Scenarios() []bioreactor.Scenario {
	out := make([]bioreactor.Scenario, 0, len(g.feeds)*len(g.concs))
	for _, f := range g.feeds {
		for _, sf := range g.concs {
			out = append(out, bioreactor.Scenario{F: f, Sf: sf})
		}
	}
	return out
}

// Candidate is one evaluated grid point.
type Candidate struct {
	Result  sim.RunResult
	Summary analysis.Summary
	Score   float64
}

// Search runs the grid as one sweep and returns the candidates sorted best
// first. Scenarios that did not complete are ranked last with a score of
// -Inf.
func (g *GridSearch) Search(ctx context.Context, s *sim.Simulator, x0 dynamo.State, cfg sim.Config, objective string) ([]Candidate, error) {
	score, ok := Objectives[objective]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownObjective, objective, ListObjectives())
	}

	results, err := s.Sweep(ctx, x0, g.Scenarios(), cfg)
	if err != nil {
		return nil, err
	}

	params := s.Model().Params()
	candidates := make([]Candidate, len(results))
	completed := 0
	for i, r := range results {
		c := Candidate{Result: r, Score: math.Inf(-1)}
		if r.OK() {
			c.Summary = analysis.Summarize(r.Trajectory, r.Scenario, params)
			c.Score = score(c.Summary)
			completed++
		}
		candidates[i] = c
	}
	if completed == 0 {
		return candidates, ErrNoCandidate
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, nil
}
