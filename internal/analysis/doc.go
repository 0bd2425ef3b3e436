// Package analysis derives figures of merit from bioreactor trajectories.
//
// The package includes:
//
//   - [Summarize]: end state, biomass peak, productivity and a
//     substrate/biomass mass balance for one run
//   - [VolumeDeviation]: largest departure of V(t) from V0 + F*t
//   - [NewPhasePortrait]: two state variables plotted against each other
//
// # Mass balance
//
// Substrate entering with the feed either remains in the tank or is turned
// into biomass at the yield Yxs:
//
//	S0*V0 + F*Sf*(t-t0) - S*V = (X*V - X0*V0) / Yxs
//
// [Summary.BalanceError] reports how far a computed trajectory is from
// satisfying this identity.
package analysis
