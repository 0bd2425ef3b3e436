// Package bioreactor models a fed-batch culture: cells (X) grow on a
// substrate (S) with Monod kinetics and form a product (P) while a feed
// stream of flow F and substrate concentration Sf fills the reactor
// volume (V).
//
// Concentrations are tracked in a growing volume, so every balance
// carries a dilution term -F*c/V next to its reaction term. [Model]
// implements [dynamo.System] with state {X, S, P, V} and control {F, Sf}.
//
// Units: X, S and P in g/L, V in L, time in hours.
package bioreactor
