// Package storage keeps finished sweeps on disk.
//
// Each run is a directory under the store root holding metadata.json and
// one scenario_<n>.csv per scenario. The CSV files start with a header row
// (time,X,S,P,V) followed by a units row.
package storage
