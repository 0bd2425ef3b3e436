package bioreactor

import (
	"github.com/san-kum/bioreact/internal/dynamo"
)

// Model is the fed-batch mass balance. It holds no mutable state; the feed
// is read from the control vector on every call, so one Model can serve
// any number of concurrent integrations.
type Model struct {
	params Parameters
}

func NewModel(p Parameters) (*Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Model{params: p}, nil
}

func (m *Model) Params() Parameters { return m.params }
func (m *Model) StateDim() int      { return stateDim }
func (m *Model) ControlDim() int    { return 2 }

// GrowthRate is the Monod specific growth rate mu(S) = mumax*S/(Ks+S).
func (m *Model) GrowthRate(s float64) float64 {
	return m.params.MuMax * s / (m.params.Ks + s)
}

// Derive returns d{X, S, P, V}/dt for control u = {F, Sf}. Each balance is
// written for the total amount in the tank and divided back by V, which
// leaves the dilution term -F*c/V on every concentration. V is not guarded:
// V = 0 yields a non-finite derivative.
func (m *Model) Derive(x dynamo.State, u dynamo.Control, _ float64) dynamo.State {
	X, S, P, V := x[IdxX], x[IdxS], x[IdxP], x[IdxV]
	F, Sf := u[0], u[1]

	mu := m.GrowthRate(S)
	rg := mu * X
	rp := m.params.Ypx * rg

	dV := F
	dX := (V*rg - F*X) / V
	dP := (V*rp - F*P) / V
	dS := (F*Sf - (1/m.params.Yxs)*V*rg - F*S) / V

	return dynamo.State{dX, dS, dP, dV}
}

// Derivative is the typed form of Derive.
type Derivative struct {
	DX, DS, DP, DV float64
}

// Rates evaluates the balances for a state and scenario at time zero.
func (m *Model) Rates(x dynamo.State, sc Scenario) Derivative {
	d := m.Derive(x, sc.Control(), 0)
	return Derivative{DX: d[IdxX], DS: d[IdxS], DP: d[IdxP], DV: d[IdxV]}
}
