// Package viz renders sweep results in the terminal.
//
//   - [PlotVariable]: one state variable across scenarios (asciigraph)
//   - [SummaryTable]: per-scenario end state and diagnostics (lipgloss)
//   - [Playback]: Bubble Tea model stepping through the samples
//
// # Playback keys
//
//	Space   - Play/Pause
//	←/→     - Step one sample
//	Home/End - Jump to start/end
//	Tab     - Cycle variable
//	+/-     - Playback speed
//	q       - Quit
package viz
