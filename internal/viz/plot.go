package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/bioreact/internal/bioreactor"
	"github.com/san-kum/bioreact/internal/dynamo"
)

// Series is one labelled trajectory.
type Series struct {
	Label      string
	Trajectory *dynamo.Trajectory
}

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Green,
	asciigraph.Cyan,
	asciigraph.Magenta,
	asciigraph.Yellow,
	asciigraph.Orange,
	asciigraph.Blue,
	asciigraph.Red,
}

// PlotOptions sizes a terminal plot. Zero values fall back to 80x12.
type PlotOptions struct {
	Width  int
	Height int
	// Limit plots only the first Limit samples of each series; 0 plots all.
	Limit int
}

// PlotVariable draws variable v of every non-empty series on one set of
// axes with a legend.
func PlotVariable(v bioreactor.Variable, series []Series, opts PlotOptions) string {
	if opts.Width <= 0 {
		opts.Width = 80
	}
	if opts.Height <= 0 {
		opts.Height = 12
	}

	var (
		data    [][]float64
		legends []string
		colors  []asciigraph.AnsiColor
	)
	for i, s := range series {
		col := s.Trajectory.Column(v.Index)
		if opts.Limit > 0 && len(col) > opts.Limit {
			col = col[:opts.Limit]
		}
		if len(col) == 0 {
			continue
		}
		data = append(data, col)
		legends = append(legends, s.Label)
		colors = append(colors, seriesColors[i%len(seriesColors)])
	}
	if len(data) == 0 {
		return ""
	}

	return asciigraph.PlotMany(data,
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.Precision(3),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(legends...),
		asciigraph.Caption(fmt.Sprintf("%s %s (%s) vs time (%s)", v.Symbol, v.Name, v.Unit, bioreactor.TimeUnit)),
	)
}
