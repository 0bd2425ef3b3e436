// Package dynamo provides the core primitives for integrating ordinary
// differential equations.
//
// The package defines the types shared by models, solvers and the
// simulator:
//
//   - [State]: vector representing system state
//   - [Control]: externally supplied inputs held constant during a run
//   - [System]: interface for ODE right-hand sides (dX/dt = f(X, u, t))
//   - [Trajectory]: time-ordered samples produced by one run
//   - [Config]: tolerances and limits for an adaptive solve
//
// # Example
//
//	model, _ := bioreactor.NewModel(params)
//	solver := integrators.NewRK45()
//	traj, stats, err := solver.Solve(ctx, model, x0, u, grid, cfg)
//
// # Errors
//
// Invalid inputs are reported as [*ConfigurationError] before any work is
// done. Solver breakdowns are reported as [*IntegrationFailure], which keeps
// the time and state the solver last reached.
package dynamo
