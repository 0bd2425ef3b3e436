// Package export renders sweep trajectories as image files.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/san-kum/bioreact/internal/bioreactor"
	"github.com/san-kum/bioreact/internal/dynamo"
)

var (
	ErrNoSeries      = errors.New("export: nothing to plot")
	ErrUnknownFormat = errors.New("export: unknown image format")
)

const (
	chartWidth  = 8 * vg.Inch
	chartHeight = 5 * vg.Inch
	pngDPI      = 150
)

// Series is one labelled trajectory.
type Series struct {
	Label      string
	Trajectory *dynamo.Trajectory
}

// Chart plots variable v of every series against time.
func Chart(v bioreactor.Variable, series []Series) (*plot.Plot, error) {
	if len(series) == 0 {
		return nil, ErrNoSeries
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s)", strings.ToUpper(v.Name[:1])+v.Name[1:], v.Symbol)
	p.X.Label.Text = fmt.Sprintf("time (%s)", bioreactor.TimeUnit)
	p.Y.Label.Text = fmt.Sprintf("%s (%s)", v.Symbol, v.Unit)
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	plotted := 0
	for i, s := range series {
		n := s.Trajectory.Len()
		if n == 0 {
			continue
		}
		pts := make(plotter.XYs, n)
		for k := 0; k < n; k++ {
			pts[k].X = s.Trajectory.Times[k]
			pts[k].Y = s.Trajectory.States[k][v.Index]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", s.Label, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(i)
		line.LineStyle.Dashes = plotutil.Dashes(i / len(plotutil.SoftColors))
		p.Add(line)
		p.Legend.Add(s.Label, line)
		plotted++
	}
	if plotted == 0 {
		return nil, ErrNoSeries
	}
	return p, nil
}

// SaveCharts writes one chart per state variable into dir and returns the
// file paths. format is "png" or "svg".
func SaveCharts(dir, format string, series []Series) ([]string, error) {
	format = strings.ToLower(format)
	if format != "png" && format != "svg" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create directory: %w", err)
	}

	var paths []string
	for _, v := range bioreactor.Variables() {
		p, err := Chart(v, series)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, fmt.Sprintf("%s.%s", strings.ToLower(v.Symbol), format))
		if format == "png" {
			err = savePNG(p, path)
		} else {
			err = p.Save(chartWidth, chartHeight, path)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func savePNG(p *plot.Plot, filename string) error {
	c := vgimg.NewWith(
		vgimg.UseWH(chartWidth, chartHeight),
		vgimg.UseDPI(pngDPI),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	pngc := vgimg.PngCanvas{Canvas: c}
	if _, err := pngc.WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}
